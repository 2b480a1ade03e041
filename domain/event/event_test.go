package event

import (
	"encoding/json"
	"testing"

	apperrors "presence-hub/errors"

	"github.com/stretchr/testify/require"
)

func TestDecode_Known_Kinds(t *testing.T) {
	req := require.New(t)
	tests := []struct {
		name string
		kind Kind
		raw  string
	}{
		{"login", KindUserLogin, `{"platform":"android"}`},
		{"logout with empty payload", KindUserLogout, ``},
		{"ad viewed", KindAdViewed, `{"ad_type":"banner","page":"home"}`},
		{"task completed", KindTaskCompleted, `{"task_id":"daily-7","reward":1.5}`},
		{"withdrawal", KindWithdrawalRequest, `{"amount":20,"method":"paypal"}`},
		{"spin", KindSpinWheel, `{"result":"jackpot","reward":50}`},
		{"admin broadcast", KindAdminBroadcast, `{"message":"maintenance"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload, err := Decode(tt.kind, json.RawMessage(tt.raw))
			req.NoError(err)
			req.Equal(tt.kind, payload.Kind())
		})
	}
}

func TestDecode_Unknown_Kind(t *testing.T) {
	req := require.New(t)

	_, err := Decode(Kind("rm_rf_slash"), nil)
	req.ErrorIs(err, apperrors.ErrInvalidEventKind)
}

func TestDecode_Invalid_Payloads(t *testing.T) {
	req := require.New(t)
	tests := []struct {
		name string
		kind Kind
		raw  string
	}{
		{"ad without type", KindAdViewed, `{"page":"home"}`},
		{"task without id", KindTaskCompleted, `{"reward":1.5}`},
		{"negative reward", KindTaskCompleted, `{"task_id":"daily-7","reward":-1}`},
		{"withdrawal of zero", KindWithdrawalRequest, `{"amount":0,"method":"paypal"}`},
		{"withdrawal without method", KindWithdrawalRequest, `{"amount":20}`},
		{"spin without result", KindSpinWheel, `{"reward":50}`},
		{"broadcast without message", KindAdminBroadcast, `{"priority":"high"}`},
		{"malformed json", KindAdViewed, `{"ad_type":`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.kind, json.RawMessage(tt.raw))
			req.ErrorIs(err, apperrors.ErrInvalidPayload)
		})
	}
}

func TestDecode_Preserves_Typed_Fields(t *testing.T) {
	req := require.New(t)

	payload, err := Decode(KindTaskCompleted, json.RawMessage(`{"task_id":"daily-7","reward":2.5,"new_balance":10}`))
	req.NoError(err)

	task := payload.(*TaskCompleted)
	req.Equal("daily-7", task.TaskID)
	req.Equal(2.5, task.Reward)
	req.NotNil(task.NewBalance)
	req.Equal(10.0, *task.NewBalance)
}
