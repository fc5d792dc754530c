package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/uni-api/internal/models"
	appErrors "github.com/noah-isme/uni-api/pkg/errors"
)

const rruleUntilLayout = "20060102T150405Z"

// CalendarPublisher pushes events into an external calendar.
type CalendarPublisher interface {
	Publish(ctx context.Context, calendarID string, events []models.CalendarEvent) (int, error)
}

type semesterLectureLister interface {
	InSemester(ctx context.Context, actor *models.JWTClaims, semester *models.Semester) ([]models.LectureDetail, error)
}

// CalendarConfig sets the zone lecture times are expressed in.
type CalendarConfig struct {
	Location *time.Location
	Clock    Clock
}

// CalendarService turns a timetable into recurring calendar events.
type CalendarService struct {
	semesters currentSemesterResolver
	lectures  semesterLectureLister
	publisher CalendarPublisher
	logger    *zap.Logger
	loc       *time.Location
	now       Clock
}

// NewCalendarService constructs the service.
func NewCalendarService(semesters currentSemesterResolver, lectures semesterLectureLister, publisher CalendarPublisher, logger *zap.Logger, cfg CalendarConfig) *CalendarService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if publisher == nil {
		publisher = NewLogCalendarPublisher(logger)
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &CalendarService{
		semesters: semesters,
		lectures:  lectures,
		publisher: publisher,
		logger:    logger,
		loc:       cfg.Location,
		now:       clockOrDefault(cfg.Clock),
	}
}

// Sync publishes the actor's current timetable to the calendar keyed by their email.
func (s *CalendarService) Sync(ctx context.Context, actor *models.JWTClaims) (*models.CalendarSyncResult, error) {
	semester, err := s.semesters.Current(ctx, s.now())
	if err != nil {
		return nil, err
	}
	lectures, err := s.lectures.InSemester(ctx, actor, semester)
	if err != nil {
		return nil, err
	}

	events := make([]models.CalendarEvent, 0, len(lectures)*2)
	for _, lecture := range lectures {
		events = append(events, LectureEvents(lecture, *semester, actor.Email, s.loc)...)
	}

	published, err := s.publisher.Publish(ctx, actor.Email, events)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrCalendarPublish.Code, appErrors.ErrCalendarPublish.Status, appErrors.ErrCalendarPublish.Message)
	}
	return &models.CalendarSyncResult{CalendarID: actor.Email, Events: events, Published: published}, nil
}

// LectureEvents builds the two weekly series of a lecture: one up to the midterms and one up to the finals.
func LectureEvents(lecture models.LectureDetail, semester models.Semester, attendee string, loc *time.Location) []models.CalendarEvent {
	firstStart := firstWeekday(semester.StartDate, lecture.Day)
	if lecture.StartDay != nil {
		firstStart = models.DateOf(*lecture.StartDay)
	}
	secondStart := firstWeekday(semester.MidtermStart.AddDate(0, 0, 7), lecture.Day)
	if lecture.StartDaySecond != nil {
		secondStart = models.DateOf(*lecture.StartDaySecond)
	}

	var events []models.CalendarEvent
	if firstStart.Before(models.DateOf(semester.MidtermStart)) {
		events = append(events, lectureSeries(lecture, firstStart, semester.MidtermStart, attendee, loc))
	}
	if secondStart.Before(models.DateOf(semester.FinalStart)) {
		events = append(events, lectureSeries(lecture, secondStart, semester.FinalStart, attendee, loc))
	}
	return events
}

func lectureSeries(lecture models.LectureDetail, start, until time.Time, attendee string, loc *time.Location) models.CalendarEvent {
	location := ""
	if lecture.AuditoriumName != nil {
		location = *lecture.AuditoriumName
	}
	return models.CalendarEvent{
		LectureID:  lecture.ID,
		Summary:    lecture.Name,
		Location:   location,
		Start:      lecture.StartTime.On(start, loc),
		End:        lecture.EndTime.On(start, loc),
		Recurrence: []string{fmt.Sprintf("RRULE:FREQ=WEEKLY;UNTIL=%s", models.DateOf(until).Format(rruleUntilLayout))},
		Attendees:  []string{attendee},
		Reminders: []models.CalendarReminder{
			{Method: "email", Minutes: 24 * 60},
			{Method: "popup", Minutes: 10},
		},
	}
}

// firstWeekday returns the first day on or after from that falls on day.
func firstWeekday(from time.Time, day time.Weekday) time.Time {
	date := models.DateOf(from)
	offset := (int(day) - int(date.Weekday()) + 7) % 7
	return date.AddDate(0, 0, offset)
}

// LogCalendarPublisher keeps published events in memory and logs them. It stands in for a hosted calendar.
type LogCalendarPublisher struct {
	mu        sync.Mutex
	calendars map[string][]models.CalendarEvent
	logger    *zap.Logger
}

// NewLogCalendarPublisher builds an empty publisher.
func NewLogCalendarPublisher(logger *zap.Logger) *LogCalendarPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogCalendarPublisher{calendars: make(map[string][]models.CalendarEvent), logger: logger}
}

// Publish replaces the events of calendarID.
func (p *LogCalendarPublisher) Publish(ctx context.Context, calendarID string, events []models.CalendarEvent) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	p.mu.Lock()
	p.calendars[calendarID] = append([]models.CalendarEvent(nil), events...)
	p.mu.Unlock()

	for _, event := range events {
		p.logger.Info("calendar event published",
			zap.String("calendar_id", calendarID),
			zap.String("lecture_id", event.LectureID),
			zap.Time("start", event.Start),
			zap.Strings("recurrence", event.Recurrence),
		)
	}
	return len(events), nil
}

// Events returns what was last published to calendarID.
func (p *LogCalendarPublisher) Events(calendarID string) []models.CalendarEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]models.CalendarEvent(nil), p.calendars[calendarID]...)
}
