package application

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate

	bracketSuffix = regexp.MustCompile(`\[\d+\]$`)
)

// maxJoinCodeRunes bounds join codes in characters, not bytes.
const maxJoinCodeRunes = 32

var weekdayNames = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"sun":       time.Sunday,
	"monday":    time.Monday,
	"mon":       time.Monday,
	"tuesday":   time.Tuesday,
	"tue":       time.Tuesday,
	"wednesday": time.Wednesday,
	"wed":       time.Wednesday,
	"thursday":  time.Thursday,
	"thu":       time.Thursday,
	"friday":    time.Friday,
	"fri":       time.Friday,
	"saturday":  time.Saturday,
	"sat":       time.Saturday,
}

func inputValidator() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(field reflect.StructField) string {
			name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
			if name == "" || name == "-" {
				return field.Name
			}
			return name
		})
		_ = v.RegisterValidation("joincode", func(fl validator.FieldLevel) bool {
			return isJoinCode(fl.Field().String())
		})
		validate = v
	})
	return validate
}

// isJoinCode accepts 1-32 printable runes in any script, none of them space.
func isJoinCode(code string) bool {
	if code == "" || !utf8.ValidString(code) || utf8.RuneCountInString(code) > maxJoinCodeRunes {
		return false
	}
	for _, r := range code {
		if !unicode.IsPrint(r) || unicode.IsSpace(r) {
			return false
		}
	}
	return true
}

// normalizeClassroomInput trims caller supplied text so that stored values
// round-trip exactly.
func normalizeClassroomInput(in ClassroomInput) ClassroomInput {
	in.JoinCode = strings.TrimSpace(in.JoinCode)
	schedule := normalizeScheduleInput(in.ScheduleInput())
	in.Subject = schedule.Subject
	in.Group = schedule.Group
	in.Room = schedule.Room
	in.StartTime = schedule.StartTime
	in.EndTime = schedule.EndTime
	in.Days = schedule.Days
	in.SessionType = schedule.SessionType
	return in
}

func normalizeScheduleInput(in ScheduleInput) ScheduleInput {
	in.Subject = strings.TrimSpace(in.Subject)
	in.Group = strings.TrimSpace(in.Group)
	in.Room = strings.TrimSpace(in.Room)
	in.StartTime = strings.TrimSpace(in.StartTime)
	in.EndTime = strings.TrimSpace(in.EndTime)
	in.SessionType = strings.TrimSpace(in.SessionType)
	if in.Days != nil {
		days := make([]string, len(in.Days))
		for i, day := range in.Days {
			days[i] = strings.TrimSpace(day)
		}
		in.Days = days
	}
	return in
}

func validateClassroomInput(in ClassroomInput) (Schedule, error) {
	vErr := &ValidationError{}
	collectFieldErrors(vErr, inputValidator().Struct(in))
	schedule := buildSchedule(in.ScheduleInput(), vErr)
	if vErr.HasErrors() {
		return Schedule{}, vErr
	}
	return schedule, nil
}

func validateScheduleInput(in ScheduleInput) (Schedule, error) {
	vErr := &ValidationError{}
	collectFieldErrors(vErr, inputValidator().Struct(in))
	schedule := buildSchedule(in, vErr)
	if vErr.HasErrors() {
		return Schedule{}, vErr
	}
	return schedule, nil
}

func validateJoinCode(code string) error {
	vErr := &ValidationError{}
	if err := inputValidator().Var(code, "required,joincode"); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			vErr.add("code", fieldMessage("code", fieldErrs[0]))
		} else {
			vErr.add("code", "code is invalid")
		}
	}
	if vErr.HasErrors() {
		return vErr
	}
	return nil
}

// buildSchedule converts validated text into a Schedule and records
// cross-field problems the struct tags cannot express.
func buildSchedule(in ScheduleInput, vErr *ValidationError) Schedule {
	days := make([]time.Weekday, 0, len(in.Days))
	seen := make(map[time.Weekday]struct{}, len(in.Days))
	for _, name := range in.Days {
		if name == "" {
			continue
		}
		day, ok := weekdayNames[strings.ToLower(name)]
		if !ok {
			vErr.add("days", fmt.Sprintf("unknown weekday %q", name))
			continue
		}
		if _, dup := seen[day]; dup {
			vErr.add("days", fmt.Sprintf("weekday %s listed more than once", day))
			continue
		}
		seen[day] = struct{}{}
		days = append(days, day)
	}

	start, startErr := time.Parse("15:04", in.StartTime)
	end, endErr := time.Parse("15:04", in.EndTime)
	if startErr == nil && endErr == nil && !end.After(start) {
		vErr.add("endTime", "endTime must be after startTime")
	}

	return Schedule{
		Subject:     in.Subject,
		Group:       in.Group,
		Room:        in.Room,
		StartTime:   in.StartTime,
		EndTime:     in.EndTime,
		Days:        days,
		SessionType: in.SessionType,
	}
}

func collectFieldErrors(vErr *ValidationError, err error) {
	if err == nil {
		return
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		vErr.add("input", "input is invalid")
		return
	}
	for _, fe := range fieldErrs {
		field := bracketSuffix.ReplaceAllString(fe.Field(), "")
		vErr.add(field, fieldMessage(field, fe))
	}
}

func fieldMessage(field string, fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "max":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("%s must list at most %s entries", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "min":
		return fmt.Sprintf("%s must list at least %s entry", field, fe.Param())
	case "datetime":
		return field + " must use HH:MM 24-hour format"
	case "joincode":
		return field + " must be 1-32 printable characters without spaces"
	default:
		return field + " is invalid"
	}
}
