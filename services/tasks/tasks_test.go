package tasks

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/hibiken/asynq"

	"creatorhub/models"
)

func optionValue(opts []asynq.Option, typ asynq.OptionType) (interface{}, bool) {
	for _, o := range opts {
		if o.Type() == typ {
			return o.Value(), true
		}
	}
	return nil, false
}

func TestNewMirrorBookingTask(t *testing.T) {
	payload := models.MirrorBookingPayload{BookingID: "b1", CreatorID: "c1", Provider: "google"}
	task, opts, err := NewMirrorBookingTask(payload, 5)
	if err != nil {
		t.Fatal(err)
	}
	if task.Type() != TypeMirrorBooking {
		t.Errorf("type = %s", task.Type())
	}
	var got models.MirrorBookingPayload
	if err := json.Unmarshal(task.Payload(), &got); err != nil || got != payload {
		t.Errorf("payload = %+v, %v", got, err)
	}
	if id, ok := optionValue(opts, asynq.TaskIDOpt); !ok || id != "mirror:b1:google" {
		t.Errorf("task id = %v", id)
	}
	if n, ok := optionValue(opts, asynq.MaxRetryOpt); !ok || n != 5 {
		t.Errorf("max retry = %v", n)
	}
}

func TestNewReleaseHoldTask(t *testing.T) {
	fireAt := time.Date(2025, 3, 3, 10, 5, 0, 0, time.UTC)
	task, opts, err := NewReleaseHoldTask(models.HoldReleasePayload{BookingID: "h1", CreatorID: "c1"}, fireAt)
	if err != nil {
		t.Fatal(err)
	}
	if task.Type() != TypeReleaseHold {
		t.Errorf("type = %s", task.Type())
	}
	at, ok := optionValue(opts, asynq.ProcessAtOpt)
	if !ok {
		t.Fatal("missing ProcessAt")
	}
	if ts, _ := at.(time.Time); !ts.Equal(fireAt) {
		t.Errorf("process at = %v", at)
	}
}
