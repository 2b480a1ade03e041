package event

import (
	"encoding/json"
	"fmt"

	apperrors "presence-hub/errors"

	"github.com/go-playground/validator/v10"
)

// Kind is the fixed vocabulary of inbound activity events. Anything outside
// this set is rejected at the pipeline boundary and never delivered.
type Kind string

const (
	KindUserLogin         Kind = "user_login"
	KindUserLogout        Kind = "user_logout"
	KindAdViewed          Kind = "ad_viewed"
	KindTaskCompleted     Kind = "task_completed"
	KindWithdrawalRequest Kind = "withdrawal_request"
	KindSpinWheel         Kind = "spin_wheel"
	KindAdminBroadcast    Kind = "admin_broadcast"
)

var validate = validator.New()

// Payload is the tagged union over the event vocabulary. Each variant is
// strongly typed; an unknown kind has no variant and fails Decode.
type Payload interface {
	Kind() Kind
}

type UserLogin struct {
	Platform string `json:"platform,omitempty"`
}

func (UserLogin) Kind() Kind { return KindUserLogin }

type UserLogout struct{}

func (UserLogout) Kind() Kind { return KindUserLogout }

type AdViewed struct {
	AdType string `json:"ad_type" validate:"required"`
	Page   string `json:"page,omitempty"`
}

func (AdViewed) Kind() Kind { return KindAdViewed }

type TaskCompleted struct {
	TaskID     string   `json:"task_id" validate:"required"`
	Reward     float64  `json:"reward" validate:"gte=0"`
	NewBalance *float64 `json:"new_balance,omitempty"`
}

func (TaskCompleted) Kind() Kind { return KindTaskCompleted }

type WithdrawalRequest struct {
	Amount float64 `json:"amount" validate:"gt=0"`
	Method string  `json:"method" validate:"required"`
}

func (WithdrawalRequest) Kind() Kind { return KindWithdrawalRequest }

type SpinWheel struct {
	Result string   `json:"result" validate:"required"`
	Reward *float64 `json:"reward,omitempty"`
}

func (SpinWheel) Kind() Kind { return KindSpinWheel }

type AdminBroadcast struct {
	Message  string `json:"message" validate:"required"`
	Priority string `json:"priority,omitempty"`
}

func (AdminBroadcast) Kind() Kind { return KindAdminBroadcast }

// Decode parses and validates the raw payload for a known kind into its
// typed variant. An unknown kind fails with ErrInvalidEventKind, a payload
// that does not satisfy the variant's constraints with ErrInvalidPayload.
func Decode(kind Kind, raw json.RawMessage) (Payload, error) {
	var p Payload
	switch kind {
	case KindUserLogin:
		p = &UserLogin{}
	case KindUserLogout:
		p = &UserLogout{}
	case KindAdViewed:
		p = &AdViewed{}
	case KindTaskCompleted:
		p = &TaskCompleted{}
	case KindWithdrawalRequest:
		p = &WithdrawalRequest{}
	case KindSpinWheel:
		p = &SpinWheel{}
	case KindAdminBroadcast:
		p = &AdminBroadcast{}
	default:
		return nil, fmt.Errorf("%w: %q", apperrors.ErrInvalidEventKind, kind)
	}

	if len(raw) > 0 {
		if err := json.Unmarshal(raw, p); err != nil {
			return nil, fmt.Errorf("%w: %v", apperrors.ErrInvalidPayload, err)
		}
	}
	if err := validate.Struct(p); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrInvalidPayload, err)
	}
	return p, nil
}
