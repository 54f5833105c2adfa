package db

import (
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// WishCatalog is the built-in card deck, 8 cards per category.
// The last card of each category is premium.
var WishCatalog = []WishCard{
	{Category: CategoryRomance, Emoji: "🕯️", TextRu: "Устроить романтический ужин при свечах дома", TextEn: "Have a candlelit dinner at home", TextTg: "Шамъҳо гузоштан барои хӯроки романтикӣ дар хона"},
	{Category: CategoryRomance, Emoji: "💌", TextRu: "Написать друг другу любовные письма", TextEn: "Write love letters to each other", TextTg: "Ба ҳамдигар номаҳои муҳаббатӣ навиштан"},
	{Category: CategoryRomance, Emoji: "⭐", TextRu: "Смотреть на звёзды вместе", TextEn: "Stargaze together", TextTg: "Якҷоя ба ситораҳо тамошо кардан"},
	{Category: CategoryRomance, Emoji: "🌅", TextRu: "Устроить пикник на закате", TextEn: "Have a sunset picnic", TextTg: "Вақти ғуруби офтоб пикник кардан"},
	{Category: CategoryRomance, Emoji: "💃", TextRu: "Танцевать дома под любимую музыку", TextEn: "Dance at home to favorite music", TextTg: "Дар хона раққосӣ кардан бо мусиқии дӯстдошта"},
	{Category: CategoryRomance, Emoji: "💆", TextRu: "Сделать массаж друг другу", TextEn: "Give each other massages", TextTg: "Ба ҳамдигар массаж кардан"},
	{Category: CategoryRomance, Emoji: "🎬", TextRu: "Пересмотреть фильм с первого свидания", TextEn: "Rewatch our first date movie", TextTg: "Филми аввалин вохӯриро дубора тамошо кардан"},
	{Category: CategoryRomance, Emoji: "📵", TextRu: "Провести день без телефонов", TextEn: "Spend a phone-free day", TextTg: "Як рӯз бе телефон гузаронидан", IsPremium: true},

	{Category: CategoryAdventure, Emoji: "🚗", TextRu: "Поехать в спонтанное путешествие", TextEn: "Take a spontaneous trip", TextTg: "Саёҳати ногаҳонӣ кардан"},
	{Category: CategoryAdventure, Emoji: "🪂", TextRu: "Попробовать новый экстремальный вид спорта", TextEn: "Try a new extreme sport", TextTg: "Варзиши экстремалии навро озмудан"},
	{Category: CategoryAdventure, Emoji: "⛺", TextRu: "Провести ночь под открытым небом", TextEn: "Sleep under the stars", TextTg: "Шабро зери осмони кушода гузаронидан"},
	{Category: CategoryAdventure, Emoji: "📚", TextRu: "Научиться чему-то новому вместе", TextEn: "Learn something new together", TextTg: "Якҷоя чизи нав омӯхтан"},
	{Category: CategoryAdventure, Emoji: "✈️", TextRu: "Посетить место из списка желаний", TextEn: "Visit a bucket list destination", TextTg: "Ба ҷои орзуӣ сафар кардан"},
	{Category: CategoryAdventure, Emoji: "📸", TextRu: "Устроить фотосессию вместе", TextEn: "Have a photoshoot together", TextTg: "Якҷоя аксбардорӣ кардан"},
	{Category: CategoryAdventure, Emoji: "👨‍🍳", TextRu: "Готовить блюдо новой кухни", TextEn: "Cook a new cuisine together", TextTg: "Хӯроки нав пухтан"},
	{Category: CategoryAdventure, Emoji: "🏔️", TextRu: "Пойти в поход в горы", TextEn: "Go hiking in the mountains", TextTg: "Ба кӯҳҳо сайр кардан", IsPremium: true},

	{Category: CategoryLeisure, Emoji: "🍿", TextRu: "Сходить в кино на премьеру", TextEn: "Go to a movie premiere", TextTg: "Ба кино рафтан"},
	{Category: CategoryLeisure, Emoji: "🎲", TextRu: "Поиграть в настольные игры весь вечер", TextEn: "Have a board game night", TextTg: "Шаб бозии мизӣ бозидан"},
	{Category: CategoryLeisure, Emoji: "🧖", TextRu: "Посетить спа вместе", TextEn: "Visit a spa together", TextTg: "Якҷоя ба спа рафтан"},
	{Category: CategoryLeisure, Emoji: "📺", TextRu: "Устроить марафон сериала", TextEn: "Have a TV series marathon", TextTg: "Марафони филмҳо тамошо кардан"},
	{Category: CategoryLeisure, Emoji: "🎤", TextRu: "Пойти на концерт", TextEn: "Go to a concert", TextTg: "Ба консерт рафтан"},
	{Category: CategoryLeisure, Emoji: "🎮", TextRu: "Поиграть в видеоигры вместе", TextEn: "Play video games together", TextTg: "Якҷоя бозии видеоӣ бозидан"},
	{Category: CategoryLeisure, Emoji: "🧴", TextRu: "Устроить день самообслуживания", TextEn: "Have a self-care day", TextTg: "Рӯзи худпарасторӣ"},
	{Category: CategoryLeisure, Emoji: "🖼️", TextRu: "Посетить музей или выставку", TextEn: "Visit a museum or exhibition", TextTg: "Ба музей ё намоишгоҳ рафтан", IsPremium: true},
}

// SeedCatalog upserts the built-in wish cards. Card ids and sort order follow
// the position in WishCatalog, so re-running it is safe.
func SeedCatalog(db *gorm.DB) error {
	cards := make([]WishCard, len(WishCatalog))
	for i, c := range WishCatalog {
		c.ID = uint(i + 1)
		c.SortOrder = i
		cards[i] = c
	}

	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"category", "text_ru", "text_en", "text_tg", "emoji", "is_premium", "sort_order"}),
	}).Create(&cards).Error
	if err != nil {
		return fmt.Errorf("failed to seed wish cards: %w", err)
	}
	return nil
}

// DemoPromoCodes are created by the seed command in development.
var DemoPromoCodes = []PromoCode{
	{Code: "WELCOME7", Type: PromoPremium, Value: 7},
	{Code: "LOVE20", Type: PromoDiscount, Value: 20},
}

// SeedPromoCodes inserts the demo promo codes unless they already exist.
func SeedPromoCodes(db *gorm.DB) error {
	for _, p := range DemoPromoCodes {
		p.ID = uuid.NewString()
		p.IsActive = true
		err := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "code"}},
			DoNothing: true,
		}).Create(&p).Error
		if err != nil {
			return fmt.Errorf("failed to seed promo %s: %w", p.Code, err)
		}
	}
	return nil
}

// Seed runs every seeder.
func Seed(db *gorm.DB, log *slog.Logger) error {
	if err := SeedCatalog(db); err != nil {
		return err
	}
	log.Info("wish catalog seeded", "cards", len(WishCatalog))

	if err := SeedPromoCodes(db); err != nil {
		return err
	}
	log.Info("promo codes seeded", "codes", len(DemoPromoCodes))
	return nil
}
