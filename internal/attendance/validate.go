package attendance

import (
	"errors"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
)

// SignupInput carries the fields of a signup request.
type SignupInput struct {
	ID       string `json:"id" validate:"notblank,max=128"`
	Password string `json:"password" validate:"notblank"`
}

// StudentInput carries the fields of an add-student request. Semester is
// kept as text so that non-numeric input can be rejected here.
type StudentInput struct {
	RollNumber string `json:"roll_number" validate:"notblank,max=64"`
	Name       string `json:"name" validate:"notblank,max=128"`
	Department string `json:"department" validate:"notblank,max=128"`
	Semester   string `json:"semester"`
}

// MarkInput carries the fields of a mark-attendance request. An empty Date
// means today.
type MarkInput struct {
	RollNumber string `json:"roll_number" validate:"notblank,max=64"`
	Date       string `json:"date"`
	Status     string `json:"status" validate:"notblank"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("notblank", validators.NotBlank)
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}

// ValidateSignup checks a signup request and returns the credential to store.
func ValidateSignup(in SignupInput) (Credential, error) {
	if err := checkStruct(in); err != nil {
		return Credential{}, err
	}
	id := strings.TrimSpace(in.ID)
	if strings.Contains(id, "@") {
		if err := validate.Var(id, "email"); err != nil {
			return Credential{}, ErrValidation("id", "must be a valid email address")
		}
	}
	return Credential{ID: id, Password: in.Password, Role: RoleLecturer}, nil
}

// ValidateStudent checks an add-student request.
func ValidateStudent(in StudentInput) (Student, error) {
	if err := checkStruct(in); err != nil {
		return Student{}, err
	}
	st := Student{
		RollNumber: strings.TrimSpace(in.RollNumber),
		Name:       strings.TrimSpace(in.Name),
		Department: strings.TrimSpace(in.Department),
	}
	if raw := strings.TrimSpace(in.Semester); raw != "" {
		sem, err := strconv.Atoi(raw)
		if err != nil {
			return Student{}, ErrValidation("semester", "must be a number")
		}
		if sem < 1 {
			return Student{}, ErrValidation("semester", "must be at least 1")
		}
		st.Semester = &sem
	}
	return st, nil
}

// ValidateMark checks a mark-attendance request. today is used when no date
// is supplied.
func ValidateMark(in MarkInput, today time.Time) (Record, error) {
	if err := checkStruct(in); err != nil {
		return Record{}, err
	}
	present, ok := ParseStatus(in.Status)
	if !ok {
		return Record{}, ErrValidation("status", "must be Present or Absent")
	}
	rec := Record{RollNumber: strings.TrimSpace(in.RollNumber), Present: present, Date: CivilDate(today)}
	if strings.TrimSpace(in.Date) != "" {
		d, err := ParseDate(in.Date)
		if err != nil {
			return Record{}, ErrValidation("date", "must be YYYY-MM-DD")
		}
		rec.Date = d
	}
	return rec, nil
}

func checkStruct(in any) error {
	err := validate.Struct(in)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return &ValidationError{Message: err.Error()}
	}
	fe := fieldErrs[0]
	switch fe.Tag() {
	case "notblank":
		return ErrValidation(fe.Field(), "is required")
	case "max":
		return ErrValidation(fe.Field(), "must be at most %s characters", fe.Param())
	default:
		return ErrValidation(fe.Field(), "failed %s check", fe.Tag())
	}
}
