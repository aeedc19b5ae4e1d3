package httpserver

import (
	"time"

	"github.com/jm-archive/jm-downloader/internal/apperr"
)

// envelope is the uniform JSON response shape of spec.md §6: every response
// — success or failure — carries this shape with HTTP status always 200.
type envelope struct {
	Code    string  `json:"code"`
	Success bool    `json:"success"`
	Data    any     `json:"data"`
	Message *string `json:"message"`
	Time    string  `json:"time"`
}

const successCode = "0"

func ok(data any) envelope {
	return envelope{Code: successCode, Success: true, Data: data, Time: now()}
}

func fail(err error) envelope {
	kind := apperr.KindOf(err)
	message := err.Error()
	return envelope{Code: kind.Code(), Success: false, Message: &message, Time: now()}
}

// shanghai is loaded once at package init; it is always present in Go's
// embedded tzdata and never fails, so the error is discarded.
var shanghai = mustLoadLocation("Asia/Shanghai")

func mustLoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.FixedZone("+08:00", 8*60*60)
	}
	return loc
}

// now formats the current time as original_source/src/lib.rs's
// beijing_now(): ISO-8601 with millisecond precision and a +08:00 offset.
func now() string {
	return time.Now().In(shanghai).Format("2006-01-02T15:04:05.000-07:00")
}
