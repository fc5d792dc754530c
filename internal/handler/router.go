package handler

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/uni-api/internal/middleware"
	"github.com/noah-isme/uni-api/internal/models"
)

// Handlers groups every HTTP handler mounted under the API prefix.
type Handlers struct {
	Auth         *AuthHandler
	Semesters    *SemesterHandler
	Courses      *CourseHandler
	Registration *RegistrationHandler
	Grades       *GradeHandler
	Payments     *PaymentHandler
	Attendance   *AttendanceHandler
	Documents    *DocumentHandler
}

// RegisterRoutes mounts the API on api. Every route except login and signed downloads requires a bearer token.
func RegisterRoutes(api gin.IRouter, h Handlers, tokens middleware.TokenValidator, logger *zap.Logger) {
	require := middleware.Require
	audit := func(action string) gin.HandlerFunc { return middleware.Audit(logger, action) }

	api.POST("/auth/login", h.Auth.Login)
	api.GET("/syllabus/download", h.Documents.DownloadSyllabus)

	authed := api.Group("")
	authed.Use(middleware.JWT(tokens))

	authed.GET("/auth/me", h.Auth.Me)
	authed.POST("/auth/change-password", h.Auth.ChangePassword)

	semesters := authed.Group("/semesters")
	semesters.GET("", h.Semesters.List)
	semesters.GET("/current", h.Semesters.Current)
	semesters.GET("/:id", h.Semesters.Get)
	semesters.POST("", require(models.CapSemestersManage), audit("semester.create"), h.Semesters.Create)

	courses := authed.Group("/courses")
	courses.GET("", h.Courses.List)
	courses.GET("/:id", h.Courses.Get)
	courses.GET("/:id/lectures", h.Courses.Lectures)
	courses.POST("", require(models.CapCatalogManage), audit("course.create"), h.Courses.Create)
	courses.PUT("/:id/prerequisites", require(models.CapCatalogManage), audit("course.prerequisites"), h.Courses.SetPrerequisites)
	courses.POST("/:id/registration", audit("course.toggle"), h.Registration.ToggleCourse)

	lectures := authed.Group("/lectures")
	lectures.GET("/mine", h.Courses.MyLectures)
	lectures.GET("/:id", h.Courses.Lecture)
	lectures.POST("", require(models.CapCatalogManage), audit("lecture.create"), h.Courses.CreateLecture)
	lectures.POST("/:id/registration", audit("lecture.toggle"), h.Registration.ToggleLecture)
	lectures.GET("/:id/assignments", h.Grades.Assignments)
	lectures.GET("/:id/grade-sheet", require(models.CapGradesWrite), h.Grades.GradeSheet)
	lectures.GET("/:id/syllabus", h.Documents.SyllabusLink)
	lectures.POST("/:id/syllabus", require(models.CapSyllabusGenerate), audit("syllabus.generate"), h.Documents.GenerateSyllabus)

	assignments := authed.Group("/assignments", require(models.CapGradesWrite))
	assignments.POST("", audit("assignment.create"), h.Grades.CreateAssignment)
	assignments.PUT("/:id", audit("assignment.update"), h.Grades.UpdateAssignment)

	authed.POST("/grades", require(models.CapGradesWrite), audit("grade.upsert"), h.Grades.Upsert)

	students := authed.Group("/students/:id")
	students.GET("/gpa", h.Grades.GPA)
	students.GET("/records", h.Grades.Records)
	students.GET("/lectures/:lectureId/grades", h.Grades.LectureGrades)
	students.GET("/lectures/:lectureId/final", h.Grades.FinalGrade)

	payments := authed.Group("/payments")
	payments.GET("", h.Payments.List)
	payments.GET("/fee", require(models.CapPaymentsSelf), h.Payments.Fee)
	payments.POST("/orders", require(models.CapPaymentsSelf), audit("payment.order"), h.Payments.CreateOrder)
	payments.POST("/capture", require(models.CapPaymentsSelf), audit("payment.capture"), h.Payments.CaptureOrder)

	attendance := authed.Group("/attendance")
	attendance.GET("", h.Attendance.List)
	attendance.POST("", require(models.CapAttendanceWrite), audit("attendance.mark"), h.Attendance.Mark)

	authed.POST("/calendar/sync", require(models.CapCalendarSync), h.Documents.SyncCalendar)
}
