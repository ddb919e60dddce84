package importer

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/heartmarshall/account-import/internal/config"
	"github.com/heartmarshall/account-import/internal/domain"
)

// Column positions shared by every variant.
const (
	colLegacyID = 0
	colUsername = 1
)

const (
	askerColumns               = 7
	askerWithoutSessionColumns = 6
	consultantColumns          = 10
)

// askerRow is the raw asker line: legacyId, username, email, consultantId,
// postcode, agencyId, password.
type askerRow struct {
	LegacyID     string `field:"legacyId"     validate:"omitempty,number,max=18"`
	Username     string `field:"username"     validate:"required,max=255"`
	Email        string `field:"email"        validate:"omitempty,email,max=255"`
	ConsultantID string `field:"consultantId" validate:"omitempty,uuid"`
	Postcode     string `field:"postcode"     validate:"omitempty,max=10"`
	AgencyID     string `field:"agencyId"     validate:"required,number,max=18"`
	Password     string `field:"password"     validate:"omitempty,max=255"`
}

// askerWithoutSessionRow is the raw line: legacyId, username, email,
// postcode, agencyId, password.
type askerWithoutSessionRow struct {
	LegacyID string `field:"legacyId" validate:"omitempty,number,max=18"`
	Username string `field:"username" validate:"required,max=255"`
	Email    string `field:"email"    validate:"omitempty,email,max=255"`
	Postcode string `field:"postcode" validate:"omitempty,max=10"`
	AgencyID string `field:"agencyId" validate:"required,number,max=18"`
	Password string `field:"password" validate:"omitempty,max=255"`
}

// consultantRow is the raw line: legacyId, username, firstName, lastName,
// email, agenciesAndRoles, absent, absenceMessage, teamConsultant, password.
type consultantRow struct {
	LegacyID         string `field:"legacyId"         validate:"omitempty,number,max=18"`
	Username         string `field:"username"         validate:"required,max=255"`
	FirstName        string `field:"firstName"        validate:"required,max=255"`
	LastName         string `field:"lastName"         validate:"required,max=255"`
	Email            string `field:"email"            validate:"omitempty,email,max=255"`
	AgenciesAndRoles string `field:"agenciesAndRoles" validate:"required"`
	Absent           string `field:"absent"           validate:"flag"`
	AbsenceMessage   string `field:"absenceMessage"   validate:"omitempty,max=2000"`
	TeamConsultant   string `field:"teamConsultant"   validate:"flag"`
	Password         string `field:"password"         validate:"omitempty,max=255"`
}

// Validator turns raw rows into typed import records. It performs no I/O.
type Validator struct {
	validate       *validator.Validate
	outerDelim     string
	innerDelim     string
	passwordLength int
	passwords      func(length int) (string, error)
}

// NewValidator creates a Validator for the configured delimiters and
// generated password length.
func NewValidator(cfg config.ImportConfig) *Validator {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return f.Tag.Get("field")
	})
	_ = v.RegisterValidation("flag", validateFlag)

	return &Validator{
		validate:       v,
		outerDelim:     cfg.AgencyRoleDelimiter,
		innerDelim:     cfg.AgencyRoleInnerDelim,
		passwordLength: cfg.PasswordLength,
		passwords:      GeneratePassword,
	}
}

// Validate dispatches on variant.
func (v *Validator) Validate(variant domain.Variant, row Row) (domain.ImportRecord, error) {
	switch variant {
	case domain.VariantAsker:
		return v.Asker(row)
	case domain.VariantAskerWithoutSession:
		return v.AskerWithoutSession(row)
	case domain.VariantConsultant:
		return v.Consultant(row)
	}
	return nil, fmt.Errorf("unsupported variant %q", variant)
}

// Identify extracts whatever identifying fields a row carries, without
// validating it. It is used to label the audit entry of a rejected row.
func Identify(row Row) domain.RecordBase {
	base := domain.RecordBase{Row: row.Number}
	if len(row.Fields) > colLegacyID {
		if id, err := strconv.ParseInt(row.Fields[colLegacyID], 10, 64); err == nil {
			base.LegacyID = &id
		}
	}
	if len(row.Fields) > colUsername {
		base.Username = domain.NormalizeUsername(row.Fields[colUsername])
	}
	return base
}

// Asker validates an asker-with-session row.
func (v *Validator) Asker(row Row) (domain.AskerRecord, error) {
	if err := checkWidth(row, askerColumns); err != nil {
		return domain.AskerRecord{}, err
	}
	f := row.Fields
	raw := askerRow{
		LegacyID:     f[0],
		Username:     f[1],
		Email:        f[2],
		ConsultantID: f[3],
		Postcode:     f[4],
		AgencyID:     f[5],
		Password:     f[6],
	}

	errs := v.check(raw)
	base, baseErrs := v.base(row.Number, raw.LegacyID, raw.Username, raw.Email, raw.Password, errs)
	errs = append(errs, baseErrs...)
	agencyID, errs := parseID("agencyId", raw.AgencyID, errs)

	var consultantID *uuid.UUID
	if raw.ConsultantID != "" && !hasField(errs, "consultantId") {
		id, err := uuid.Parse(raw.ConsultantID)
		if err != nil {
			errs = append(errs, domain.FieldError{Field: "consultantId", Message: "not a uuid"})
		} else {
			consultantID = &id
		}
	}

	if len(errs) > 0 {
		return domain.AskerRecord{}, domain.NewValidationErrors(errs)
	}
	return domain.AskerRecord{
		RecordBase:   base,
		ConsultantID: consultantID,
		Postcode:     raw.Postcode,
		AgencyID:     agencyID,
	}, nil
}

// AskerWithoutSession validates an asker-without-session row.
func (v *Validator) AskerWithoutSession(row Row) (domain.AskerWithoutSessionRecord, error) {
	if err := checkWidth(row, askerWithoutSessionColumns); err != nil {
		return domain.AskerWithoutSessionRecord{}, err
	}
	f := row.Fields
	raw := askerWithoutSessionRow{
		LegacyID: f[0],
		Username: f[1],
		Email:    f[2],
		Postcode: f[3],
		AgencyID: f[4],
		Password: f[5],
	}

	errs := v.check(raw)
	base, baseErrs := v.base(row.Number, raw.LegacyID, raw.Username, raw.Email, raw.Password, errs)
	errs = append(errs, baseErrs...)
	agencyID, errs := parseID("agencyId", raw.AgencyID, errs)

	if len(errs) > 0 {
		return domain.AskerWithoutSessionRecord{}, domain.NewValidationErrors(errs)
	}
	return domain.AskerWithoutSessionRecord{
		RecordBase: base,
		Postcode:   raw.Postcode,
		AgencyID:   agencyID,
	}, nil
}

// Consultant validates a consultant row.
func (v *Validator) Consultant(row Row) (domain.ConsultantRecord, error) {
	if err := checkWidth(row, consultantColumns); err != nil {
		return domain.ConsultantRecord{}, err
	}
	f := row.Fields
	raw := consultantRow{
		LegacyID:         f[0],
		Username:         f[1],
		FirstName:        f[2],
		LastName:         f[3],
		Email:            f[4],
		AgenciesAndRoles: f[5],
		Absent:           f[6],
		AbsenceMessage:   f[7],
		TeamConsultant:   f[8],
		Password:         f[9],
	}

	errs := v.check(raw)
	base, baseErrs := v.base(row.Number, raw.LegacyID, raw.Username, raw.Email, raw.Password, errs)
	errs = append(errs, baseErrs...)

	var pairs []domain.AgencyRoleSet
	if !hasField(errs, "agenciesAndRoles") {
		var pairErrs []domain.FieldError
		pairs, pairErrs = v.agencyRoleSets(raw.AgenciesAndRoles)
		errs = append(errs, pairErrs...)
	}

	if len(errs) > 0 {
		return domain.ConsultantRecord{}, domain.NewValidationErrors(errs)
	}

	rec := domain.ConsultantRecord{
		RecordBase:     base,
		FirstName:      raw.FirstName,
		LastName:       raw.LastName,
		AgencyRoleSets: pairs,
		Absent:         parseFlag(raw.Absent),
		TeamConsultant: parseFlag(raw.TeamConsultant),
	}
	if raw.AbsenceMessage != "" {
		msg := raw.AbsenceMessage
		rec.AbsenceMessage = &msg
	}
	return rec, nil
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// check runs the struct rules and converts failures to field errors.
func (v *Validator) check(raw any) []domain.FieldError {
	err := v.validate.Struct(raw)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []domain.FieldError{{Field: "row", Message: err.Error()}}
	}

	out := make([]domain.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, domain.FieldError{Field: fe.Field(), Message: ruleMessage(fe)})
	}
	return out
}

// base builds the shared part of a record. Fields already reported in prior
// are not checked again.
func (v *Validator) base(row int, legacyID, username, email, password string, prior []domain.FieldError) (domain.RecordBase, []domain.FieldError) {
	var errs []domain.FieldError
	b := domain.RecordBase{Row: row}

	if legacyID != "" && !hasField(prior, "legacyId") {
		id, err := strconv.ParseInt(legacyID, 10, 64)
		if err != nil {
			errs = append(errs, domain.FieldError{Field: "legacyId", Message: "not a number"})
		} else {
			b.LegacyID = &id
		}
	}

	if !hasField(prior, "username") {
		name := domain.NormalizeUsername(username)
		if domain.IsEncodedUsername(name) {
			plain := domain.DecodeUsername(name)
			if plain == name {
				errs = append(errs, domain.FieldError{Field: "username", Message: "invalid encoding"})
			}
			b.Username, b.UsernameEncoded = plain, name
		} else {
			b.Username, b.UsernameEncoded = name, domain.EncodeUsername(name)
		}
	}

	if email != "" && !hasField(prior, "email") {
		e := email
		b.Email = &e
	}

	if password == "" {
		generated, err := v.passwords(v.passwordLength)
		if err != nil {
			errs = append(errs, domain.FieldError{Field: "password", Message: "generate: " + err.Error()})
		}
		b.Password, b.PasswordGenerated = generated, true
	} else {
		b.Password = password
	}

	return b, errs
}

// agencyRoleSets parses "10;main,20;leiter" style lists. Every bad pair is
// reported, not just the first.
func (v *Validator) agencyRoleSets(value string) ([]domain.AgencyRoleSet, []domain.FieldError) {
	var (
		pairs []domain.AgencyRoleSet
		errs  []domain.FieldError
	)
	for i, item := range strings.Split(value, v.outerDelim) {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		field := fmt.Sprintf("agenciesAndRoles[%d]", i)

		agency, roleSet, ok := strings.Cut(item, v.innerDelim)
		if !ok {
			errs = append(errs, domain.FieldError{Field: field, Message: fmt.Sprintf("missing %q between agency and role set", v.innerDelim)})
			continue
		}
		id, err := strconv.ParseInt(strings.TrimSpace(agency), 10, 64)
		if err != nil {
			errs = append(errs, domain.FieldError{Field: field, Message: "agency id not a number"})
			continue
		}
		roleSet = strings.TrimSpace(roleSet)
		if roleSet == "" {
			errs = append(errs, domain.FieldError{Field: field, Message: "empty role set"})
			continue
		}
		pairs = append(pairs, domain.AgencyRoleSet{AgencyID: id, RoleSet: domain.RoleSetName(roleSet)})
	}

	if len(pairs) == 0 && len(errs) == 0 {
		errs = append(errs, domain.FieldError{Field: "agenciesAndRoles", Message: "required"})
	}
	return pairs, errs
}

func checkWidth(row Row, want int) error {
	if len(row.Fields) < want {
		return domain.NewValidationError("row", fmt.Sprintf("expected %d fields, got %d", want, len(row.Fields)))
	}
	return nil
}

func parseID(field, value string, errs []domain.FieldError) (int64, []domain.FieldError) {
	if value == "" || hasField(errs, field) {
		return 0, errs
	}
	id, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, append(errs, domain.FieldError{Field: field, Message: "not a number"})
	}
	return id, errs
}

func hasField(errs []domain.FieldError, field string) bool {
	for _, e := range errs {
		if e.Field == field {
			return true
		}
	}
	return false
}

func ruleMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "required"
	case "email":
		return "invalid format"
	case "number":
		return "not a number"
	case "uuid":
		return "not a uuid"
	case "max":
		return "too long"
	case "flag":
		return "not a boolean"
	}
	return "failed " + fe.Tag()
}

var flagValues = map[string]bool{
	"":      false,
	"true":  true,
	"false": false,
	"1":     true,
	"0":     false,
	"yes":   true,
	"no":    false,
}

func validateFlag(fl validator.FieldLevel) bool {
	_, ok := flagValues[strings.ToLower(fl.Field().String())]
	return ok
}

func parseFlag(s string) bool {
	return flagValues[strings.ToLower(s)]
}
