package notify

import (
	"context"
	"sync"
	"time"
)

// Sent is one notification captured by a Recorder.
type Sent struct {
	Kind     string
	Receiver int64
	Name     string
	Title    string
	Message  *string
}

// Recorder keeps every notification in memory. Set Err to make deliveries fail.
type Recorder struct {
	mu   sync.Mutex
	sent []Sent
	Err  error
}

func (r *Recorder) add(s Sent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, s)
	return r.Err
}

// Sent returns a copy of everything recorded so far.
func (r *Recorder) Sent() []Sent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Sent(nil), r.sent...)
}

// Kinds lists the recorded kinds in order.
func (r *Recorder) Kinds() []string {
	var out []string
	for _, s := range r.Sent() {
		out = append(out, s.Kind)
	}
	return out
}

func (r *Recorder) Love(_ context.Context, receiverID int64, senderName string, message *string) error {
	return r.add(Sent{Kind: "love", Receiver: receiverID, Name: senderName, Message: message})
}

func (r *Recorder) DateCreated(_ context.Context, receiverID int64, creatorName, title, _, _ string) error {
	return r.add(Sent{Kind: "date_created", Receiver: receiverID, Name: creatorName, Title: title})
}

func (r *Recorder) DateReminder(_ context.Context, receiverID int64, title, _, _ string) error {
	return r.add(Sent{Kind: "date_reminder", Receiver: receiverID, Title: title})
}

func (r *Recorder) PartnerJoined(_ context.Context, creatorID int64, partnerName string) error {
	return r.add(Sent{Kind: "partner_joined", Receiver: creatorID, Name: partnerName})
}

func (r *Recorder) PremiumActivated(_ context.Context, userID int64, _ time.Time) error {
	return r.add(Sent{Kind: "premium_activated", Receiver: userID})
}
