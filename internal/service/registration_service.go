package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/uni-api/internal/models"
	"github.com/noah-isme/uni-api/internal/repository"
	appErrors "github.com/noah-isme/uni-api/pkg/errors"
)

// DefaultRegistrationWindow is how long after the semester start self registration stays open.
const DefaultRegistrationWindow = 14 * 24 * time.Hour

type currentSemesterResolver interface {
	Current(ctx context.Context, now time.Time) (*models.Semester, error)
}

type studentReader interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type registrationCourseRepository interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
	IsStudentRegistered(ctx context.Context, courseID, studentID string) (bool, error)
	AddStudent(ctx context.Context, courseID, studentID string) error
	RemoveStudent(ctx context.Context, courseID, studentID string) error
}

type registrationLectureRepository interface {
	FindByID(ctx context.Context, id string) (*models.Lecture, error)
	IsEnrolled(ctx context.Context, lectureID, studentID string) (bool, error)
	ListByStudentInSemester(ctx context.Context, studentID, semesterID string) ([]models.LectureDetail, error)
}

type prerequisiteEvaluator interface {
	Missing(ctx context.Context, course models.Course, studentID string) ([]models.Course, bool, error)
	Failed(ctx context.Context, course models.Course, studentID string) (models.FailedPrerequisites, error)
}

type registrationStore interface {
	WithinTx(ctx context.Context, fn func(repository.RegistrationTx) error) error
}

type feeReconciler interface {
	Reconcile(ctx context.Context, student *models.User, semester *models.Semester) (*models.Fee, error)
}

type aggregateInvalidator interface {
	Invalidate(ctx context.Context, studentID string)
}

// RegistrationConfig tunes the registration gate.
type RegistrationConfig struct {
	Window time.Duration
	Clock  Clock
}

// RegistrationService toggles course and lecture membership for students.
type RegistrationService struct {
	semesters currentSemesterResolver
	users     studentReader
	courses   registrationCourseRepository
	lectures  registrationLectureRepository
	prereqs   prerequisiteEvaluator
	store     registrationStore
	fees      feeReconciler
	grades    aggregateInvalidator
	metrics   *MetricsService
	logger    *zap.Logger
	window    time.Duration
	now       Clock
}

// NewRegistrationService wires the registration flow.
func NewRegistrationService(
	semesters currentSemesterResolver,
	users studentReader,
	courses registrationCourseRepository,
	lectures registrationLectureRepository,
	prereqs prerequisiteEvaluator,
	store registrationStore,
	fees feeReconciler,
	grades aggregateInvalidator,
	metrics *MetricsService,
	logger *zap.Logger,
	cfg RegistrationConfig,
) *RegistrationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Window <= 0 {
		cfg.Window = DefaultRegistrationWindow
	}
	return &RegistrationService{
		semesters: semesters,
		users:     users,
		courses:   courses,
		lectures:  lectures,
		prereqs:   prereqs,
		store:     store,
		fees:      fees,
		grades:    grades,
		metrics:   metrics,
		logger:    logger,
		window:    cfg.Window,
		now:       clockOrDefault(cfg.Clock),
	}
}

// RegistrationWindow refuses roles that may never self register and everyone else once the window after the
// semester start has passed.
func (s *RegistrationService) RegistrationWindow(role models.UserRole, semester *models.Semester, now time.Time) error {
	if !role.Can(models.CapRegistrationWindow) {
		return appErrors.Clone(appErrors.ErrRegistrationClosed, "registration is not available for your role")
	}
	closesAt := models.DateOf(semester.StartDate).Add(s.window)
	if models.DateOf(now).After(closesAt) {
		return appErrors.Clone(appErrors.ErrRegistrationClosed, "registration closed on "+closesAt.Format("2006-01-02"))
	}
	return nil
}

// ToggleCourse registers the student in the course or removes them, then reconciles the semester fee.
// A failed reconciliation keeps the membership change and leaves Fee empty: the loan is recomputed on the
// next fee read and before the deactivation run.
func (s *RegistrationService) ToggleCourse(ctx context.Context, studentID, courseID string) (*models.RegistrationResult, error) {
	student, semester, err := s.begin(ctx, studentID)
	if err != nil {
		return nil, s.reject("course", err)
	}
	if !student.Role.Can(models.CapRegisterSelf) {
		return nil, s.reject("course", appErrors.Clone(appErrors.ErrRoleNotAllowed, "only students are allowed to register the course"))
	}

	course, err := s.courses.FindByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, s.reject("course", appErrors.Clone(appErrors.ErrNotFound, "course not found"))
		}
		return nil, appErrors.Internal(err, "failed to load course")
	}

	registered, err := s.courses.IsStudentRegistered(ctx, course.ID, student.ID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to check course registration")
	}

	action := models.ActionUnregistered
	if registered {
		if err := s.courses.RemoveStudent(ctx, course.ID, student.ID); err != nil {
			return nil, appErrors.Internal(err, "failed to unregister course")
		}
	} else {
		if err := s.checkPrerequisites(ctx, *course, student.ID); err != nil {
			return nil, s.reject("course", err)
		}
		if err := s.courses.AddStudent(ctx, course.ID, student.ID); err != nil {
			return nil, appErrors.Internal(err, "failed to register course")
		}
		action = models.ActionRegistered
	}

	if s.grades != nil {
		s.grades.Invalidate(ctx, student.ID)
	}
	fee, err := s.fees.Reconcile(ctx, student, semester)
	if err != nil {
		s.logger.Warn("fee reconciliation after course toggle failed",
			zap.String("student_id", student.ID),
			zap.String("course_id", course.ID),
			zap.Error(err),
		)
	}

	s.metrics.RecordRegistration("course", string(action))
	s.logger.Info("course registration toggled",
		zap.String("student_id", student.ID),
		zap.String("course_id", course.ID),
		zap.String("action", string(action)),
	)
	return &models.RegistrationResult{Action: action, CourseID: course.ID, Fee: fee}, nil
}

func (s *RegistrationService) checkPrerequisites(ctx context.Context, course models.Course, studentID string) error {
	missing, applicable, err := s.prereqs.Missing(ctx, course, studentID)
	if err != nil {
		return err
	}
	if applicable && len(missing) > 0 {
		return appErrors.Clone(appErrors.ErrMissingPrerequisites,
			"you can't register the course because you have not completed the following prerequisites: "+
				strings.Join(models.CourseNames(missing), ", "))
	}

	failed, err := s.prereqs.Failed(ctx, course, studentID)
	if err != nil {
		return err
	}
	if !failed.Blocking() {
		return nil
	}
	if failed.Ungraded {
		return appErrors.Clone(appErrors.ErrFailedPrerequisites, "you have not received the appropriate grades in prerequisites")
	}
	return appErrors.Clone(appErrors.ErrFailedPrerequisites,
		"you can't register the course because you have failed the following prerequisites: "+
			strings.Join(models.CourseNames(failed.Courses), ", "))
}

// CanRegisterLecture runs the lecture checks in order and returns the first rejection.
func (s *RegistrationService) CanRegisterLecture(ctx context.Context, student *models.User, lecture models.Lecture, semester *models.Semester) error {
	if !student.Role.Can(models.CapRegisterSelf) {
		return appErrors.Clone(appErrors.ErrRoleNotAllowed, "only students are allowed to register the lecture")
	}

	enrolled, err := s.lectures.IsEnrolled(ctx, lecture.ID, student.ID)
	if err != nil {
		return appErrors.Internal(err, "failed to check enrollment")
	}
	if lecture.Capacity == 0 && !enrolled {
		return appErrors.ErrLectureFull
	}

	if student.Loan > 0 {
		return appErrors.ErrOutstandingLoan
	}

	registered, err := s.courses.IsStudentRegistered(ctx, lecture.CourseID, student.ID)
	if err != nil {
		return appErrors.Internal(err, "failed to check course registration")
	}
	if !registered {
		return appErrors.ErrCourseNotRegistered
	}

	chosen, err := s.lectures.ListByStudentInSemester(ctx, student.ID, semester.ID)
	if err != nil {
		return appErrors.Internal(err, "failed to load chosen lectures")
	}
	var overlapping []string
	for _, existing := range chosen {
		if existing.ID == lecture.ID {
			continue
		}
		if existing.Overlaps(lecture) {
			overlapping = append(overlapping, existing.Name)
		}
	}
	if len(overlapping) > 0 {
		return appErrors.Clone(appErrors.ErrOverlappingLectures,
			"you can't register the lecture because you have overlapping lectures: "+strings.Join(overlapping, ", "))
	}
	return nil
}

// ToggleLecture enrolls the student in the lecture or drops them, keeping capacity and grade record activation
// consistent inside one transaction.
func (s *RegistrationService) ToggleLecture(ctx context.Context, studentID, lectureID string) (*models.RegistrationResult, error) {
	student, semester, err := s.begin(ctx, studentID)
	if err != nil {
		return nil, s.reject("lecture", err)
	}

	lecture, err := s.lectures.FindByID(ctx, lectureID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, s.reject("lecture", appErrors.Clone(appErrors.ErrNotFound, "lecture not found"))
		}
		return nil, appErrors.Internal(err, "failed to load lecture")
	}
	if err := s.CanRegisterLecture(ctx, student, *lecture, semester); err != nil {
		return nil, s.reject("lecture", err)
	}
	if lecture.SemesterID != semester.ID {
		return nil, s.reject("lecture", appErrors.ErrLectureNotInSemester)
	}

	result := &models.RegistrationResult{LectureID: lecture.ID, CourseID: lecture.CourseID}
	err = s.store.WithinTx(ctx, func(tx repository.RegistrationTx) error {
		locked, err := tx.LockLecture(ctx, lecture.ID)
		if err != nil {
			return err
		}
		enrolled, err := tx.IsEnrolled(ctx, locked.ID, student.ID)
		if err != nil {
			return err
		}
		var capacity int
		if enrolled {
			capacity, err = s.unregister(ctx, tx, student.ID, *locked)
			result.Action = models.ActionUnregistered
		} else {
			capacity, err = s.register(ctx, tx, student.ID, *locked)
			result.Action = models.ActionRegistered
		}
		if err != nil {
			return err
		}
		result.Capacity = &capacity
		return nil
	})
	if err != nil {
		var appErr *appErrors.Error
		if errors.As(err, &appErr) {
			return nil, s.reject("lecture", appErr)
		}
		return nil, appErrors.Internal(err, "failed to toggle lecture registration")
	}

	s.metrics.RecordRegistration("lecture", string(result.Action))
	s.logger.Info("lecture registration toggled",
		zap.String("student_id", student.ID),
		zap.String("lecture_id", lecture.ID),
		zap.String("action", string(result.Action)),
		zap.Int("capacity", *result.Capacity),
	)
	return result, nil
}

// unregister drops the lecture and restores the most recent earlier attempt of the same course.
func (s *RegistrationService) unregister(ctx context.Context, tx repository.RegistrationTx, studentID string, lecture models.Lecture) (int, error) {
	if err := tx.DeactivateLectureRecords(ctx, studentID, lecture.ID); err != nil {
		return 0, err
	}

	previous, err := tx.LatestInactiveRecord(ctx, studentID, lecture.CourseID, lecture.ID)
	switch {
	case err == nil:
		if err := tx.ActivateRecord(ctx, previous.ID); err != nil {
			return 0, err
		}
		// The earlier lecture never gave its seat back, so re-adding it leaves its capacity alone.
		if err := tx.AddEnrollment(ctx, previous.LectureID, studentID); err != nil {
			return 0, err
		}
	case errors.Is(err, sql.ErrNoRows):
	default:
		return 0, err
	}

	removed, err := tx.RemoveEnrollment(ctx, lecture.ID, studentID)
	if err != nil {
		return 0, err
	}
	if !removed {
		return lecture.Capacity, nil
	}
	return tx.IncrementCapacity(ctx, lecture.ID)
}

// register demotes any other attempt of the course and takes a seat in the lecture.
func (s *RegistrationService) register(ctx context.Context, tx repository.RegistrationTx, studentID string, lecture models.Lecture) (int, error) {
	others, err := tx.OtherEnrolledLectures(ctx, studentID, lecture.CourseID, lecture.ID)
	if err != nil {
		return 0, err
	}
	for _, other := range others {
		if _, err := tx.RemoveEnrollment(ctx, other.ID, studentID); err != nil {
			return 0, err
		}
	}
	if err := tx.DeactivateCourseRecords(ctx, studentID, lecture.CourseID); err != nil {
		return 0, err
	}

	capacity, ok, err := tx.DecrementCapacity(ctx, lecture.ID)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, appErrors.ErrCapacityInsufficient
	}
	if err := tx.AddEnrollment(ctx, lecture.ID, studentID); err != nil {
		return 0, err
	}
	return capacity, nil
}

// begin resolves the semester once for the request, loads the student and applies the registration window.
func (s *RegistrationService) begin(ctx context.Context, studentID string) (*models.User, *models.Semester, error) {
	now := s.now()
	semester, err := s.semesters.Current(ctx, now)
	if err != nil {
		return nil, nil, err
	}
	student, err := s.users.FindByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, nil, appErrors.Internal(err, "failed to load student")
	}
	if err := s.RegistrationWindow(student.Role, semester, now); err != nil {
		return nil, nil, err
	}
	return student, semester, nil
}

func (s *RegistrationService) reject(kind string, err error) error {
	var appErr *appErrors.Error
	if errors.As(err, &appErr) && appErr.Status < 500 {
		s.metrics.RecordRegistration(kind, strings.ToLower(appErr.Code))
	}
	return err
}
