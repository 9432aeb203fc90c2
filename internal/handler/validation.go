package handler

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/Shivanand-hulikatti/event-portal/internal/model"
)

const maxTitleLength = 100

// dateLayouts are the accepted encodings of an event date.
var dateLayouts = []string{"2006-01-02", time.RFC3339}

type fieldErrors []model.FieldError

func (fe *fieldErrors) add(field, msg string) {
	*fe = append(*fe, model.FieldError{Field: field, Message: msg})
}

func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func checkTitle(errs *fieldErrors, title string) {
	switch title = strings.TrimSpace(title); {
	case title == "":
		errs.add("title", "Please add a title")
	case utf8.RuneCountInString(title) > maxTitleLength:
		errs.add("title", "Title cannot be more than 100 characters")
	}
}

func validateCreateEvent(req model.CreateEventRequest) (model.EventDraft, []model.FieldError) {
	var errs fieldErrors
	checkTitle(&errs, req.Title)
	if strings.TrimSpace(req.Description) == "" {
		errs.add("description", "Please add a description")
	}
	date, ok := parseDate(req.Date)
	if !ok {
		errs.add("date", "Please add a valid date")
	}
	if strings.TrimSpace(req.Time) == "" {
		errs.add("time", "Please add a time")
	}
	if strings.TrimSpace(req.Venue) == "" {
		errs.add("venue", "Please add a venue")
	}
	if req.Capacity < 1 {
		errs.add("capacity", "Capacity must be at least 1")
	}
	if len(errs) > 0 {
		return model.EventDraft{}, errs
	}
	return model.EventDraft{
		Title:       req.Title,
		Description: req.Description,
		Date:        date,
		Time:        req.Time,
		Venue:       req.Venue,
		Capacity:    req.Capacity,
	}, nil
}

func validateUpdateEvent(req model.UpdateEventRequest) (model.EventUpdate, []model.FieldError) {
	var errs fieldErrors
	upd := model.EventUpdate{
		Title:       req.Title,
		Description: req.Description,
		Time:        req.Time,
		Venue:       req.Venue,
	}
	if req.Title != nil {
		checkTitle(&errs, *req.Title)
	}
	if req.Date != nil {
		date, ok := parseDate(*req.Date)
		if !ok {
			errs.add("date", "Please add a valid date")
		} else {
			upd.Date = &date
		}
	}
	optional := []struct {
		field string
		value *string
	}{
		{"description", req.Description},
		{"time", req.Time},
		{"venue", req.Venue},
	}
	for _, o := range optional {
		if o.value != nil && strings.TrimSpace(*o.value) == "" {
			errs.add(o.field, o.field+" cannot be empty")
		}
	}
	if len(errs) > 0 {
		return model.EventUpdate{}, errs
	}
	return upd, nil
}

func validateRegister(req model.RegisterRequest) []model.FieldError {
	var errs fieldErrors
	if _, err := uuid.Parse(strings.TrimSpace(req.EventID)); err != nil {
		errs.add("eventId", "Valid event ID is required")
	}
	return errs
}
