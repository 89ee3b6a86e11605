package calendar

import (
	"context"
	"errors"
	"fmt"
	"time"

	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
)

// ErrAuthExpired marks a rejected bearer credential. Callers prompt the
// re-authorization flow; no local state is mutated.
var ErrAuthExpired = errors.New("calendar: authorization expired")

// Client wraps a Google Calendar service for read-only event queries.
type Client struct {
	srv        *calendar.Service
	calendarID string
}

func NewClient(srv *calendar.Service, calendarID string) *Client {
	if calendarID == "" {
		calendarID = "primary"
	}
	return &Client{srv: srv, calendarID: calendarID}
}

// EventsForDay fetches the events overlapping one host-local calendar day,
// mapped into validated Event records. Items the provider returns without
// usable times are dropped by the merge step.
func (c *Client) EventsForDay(ctx context.Context, day time.Time) ([]Event, error) {
	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	dayEnd := dayStart.AddDate(0, 0, 1)

	res, err := c.srv.Events.List(c.calendarID).
		TimeMin(dayStart.Format(time.RFC3339)).
		TimeMax(dayEnd.Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime").
		Context(ctx).
		Do()
	if err != nil {
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) && (apiErr.Code == 401 || apiErr.Code == 403) {
			return nil, fmt.Errorf("%w: %v", ErrAuthExpired, err)
		}
		return nil, fmt.Errorf("calendar: list events: %w", err)
	}

	out := make([]Event, 0, len(res.Items))
	for _, item := range res.Items {
		ev, ok := mapItem(item)
		if !ok {
			continue
		}
		out = append(out, ev)
	}
	return out, nil
}

// mapItem converts one provider item. Timed events require parsable
// dateTime fields; date-only events become all-day entries.
func mapItem(item *calendar.Event) (Event, bool) {
	if item == nil || item.Id == "" || item.Start == nil || item.End == nil {
		return Event{}, false
	}
	ev := Event{ID: item.Id, Summary: item.Summary}

	if item.Start.DateTime != "" && item.End.DateTime != "" {
		start, err := time.Parse(time.RFC3339, item.Start.DateTime)
		if err != nil {
			return Event{}, false
		}
		end, err := time.Parse(time.RFC3339, item.End.DateTime)
		if err != nil {
			return Event{}, false
		}
		ev.Start = start.Local()
		ev.End = end.Local()
		return ev, true
	}
	if item.Start.Date != "" {
		ev.AllDay = true
		return ev, true
	}
	return Event{}, false
}
