package grpcapi

import (
	"context"
	"math"
	"strconv"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/oggyb/pulse/internal/app"
	svcErr "github.com/oggyb/pulse/internal/errors"
	"github.com/oggyb/pulse/internal/service/billing"
	"github.com/oggyb/pulse/internal/service/love"
	"github.com/oggyb/pulse/internal/service/pairing"
	"github.com/oggyb/pulse/internal/service/streak"
)

// Service implements PulseInternal on top of the domain services.
type Service struct {
	appCtx  *app.AppContext
	pairs   *pairing.Registry
	love    *love.Service
	billing *billing.Service
}

func NewService(appCtx *app.AppContext, pairs *pairing.Registry, loveSvc *love.Service, bill *billing.Service) *Service {
	return &Service{appCtx: appCtx, pairs: pairs, love: loveSvc, billing: bill}
}

// Registrar ties the internal service into the gRPC server.
type Registrar struct {
	svc *Service
}

func NewRegistrar(svc *Service) *Registrar { return &Registrar{svc: svc} }

func (r *Registrar) Register(s *grpc.Server) {
	s.RegisterService(&ServiceDesc, r.svc)
}

// GetPair returns the caller's active pair with its streak.
//
// Request: {user_id}. NotFound when the user has no active pair.
func (s *Service) GetPair(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	userID, err := userIDOf(in)
	if err != nil {
		return nil, err
	}
	v, err := s.pairs.GetActivePair(ctx, userID)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	if v == nil {
		return nil, svcErr.Map(svcErr.ErrNotPaired)
	}

	st := streak.StatusOf(v.Streak)
	out := map[string]any{
		"pair_id":     v.Pair.ID,
		"invite_code": v.Pair.InviteCode,
		"joined":      v.Joined(),
		"creator_id":  strconv.FormatInt(v.Pair.CreatorID, 10),
		"streak": map[string]any{
			"current":    st.CurrentStreak,
			"max":        st.MaxStreak,
			"level":      st.TreeLevel,
			"level_name": st.LevelName,
		},
	}
	if v.Joined() {
		out["partner_id"] = strconv.FormatInt(*v.Pair.PartnerID, 10)
	}
	return toStruct(out)
}

// SendLove runs the throttled send for {user_id, message?}.
func (s *Service) SendLove(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	userID, err := userIDOf(in)
	if err != nil {
		return nil, err
	}
	res, err := s.love.Send(ctx, userID, in.GetFields()["message"].GetStringValue())
	if err != nil {
		s.appCtx.Logger.Debug("internal send love rejected", "user_id", userID, "err", err)
		return nil, svcErr.Map(err)
	}
	return toStruct(map[string]any{
		"love_id":        res.Click.ID,
		"current_streak": res.Streak.CurrentStreak,
		"tree_level":     res.Streak.TreeLevel,
	})
}

// FulfillPayment completes {payload, charge_id}. Redelivery is a no-op.
func (s *Service) FulfillPayment(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	f := in.GetFields()
	payload := strings.TrimSpace(f["payload"].GetStringValue())
	if payload == "" {
		return nil, svcErr.InvalidArgument("payload is required")
	}
	p, err := s.billing.Fulfill(ctx, payload, f["charge_id"].GetStringValue())
	if err != nil {
		s.appCtx.Logger.Error("internal fulfill failed", "err", err)
		return nil, svcErr.Map(err)
	}
	return toStruct(map[string]any{
		"payment_id": p.ID,
		"user_id":    strconv.FormatInt(p.UserID, 10),
		"tier":       p.Tier,
		"status":     p.Status,
	})
}

// userIDOf accepts user_id as a number or a decimal string.
func userIDOf(in *structpb.Struct) (int64, error) {
	v, ok := in.GetFields()["user_id"]
	if !ok {
		return 0, svcErr.InvalidArgument("user_id is required")
	}
	var id int64
	switch k := v.GetKind().(type) {
	case *structpb.Value_NumberValue:
		if k.NumberValue != math.Trunc(k.NumberValue) {
			return 0, svcErr.InvalidArgument("user_id must be an integer")
		}
		id = int64(k.NumberValue)
	case *structpb.Value_StringValue:
		n, err := strconv.ParseInt(k.StringValue, 10, 64)
		if err != nil {
			return 0, svcErr.InvalidArgument("user_id must be an integer")
		}
		id = n
	default:
		return 0, svcErr.InvalidArgument("user_id must be an integer")
	}
	if id <= 0 {
		return 0, svcErr.InvalidArgument("user_id must be positive")
	}
	return id, nil
}

func toStruct(m map[string]any) (*structpb.Struct, error) {
	out, err := structpb.NewStruct(m)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	return out, nil
}
