// Package validation validates untrusted input from the public signup form
// before it reaches the database. Admin endpoints receive already-reviewed
// data and bind directly; only the public intake path goes through here.
package validation

import (
	"fmt"
	"net/mail"
	"strings"
	"unicode/utf8"
)

// Field length limits enforced on signup submissions. The database columns
// are wider; these limits exist to reject obviously bogus input early.
const (
	MaxCompanyNameLength = 200
	MaxContactNameLength = 200
	MaxEmailLength       = 320
	MaxPropertyCount     = 10000
	MaxRequestedFeatures = 10
)

// knownFeatures is the set of feature flags a signup may request. Anything
// else is a typo or a probe and gets rejected.
var knownFeatures = map[string]bool{
	"channel_manager": true,
	"booking_engine":  true,
	"payments":        true,
	"reporting":       true,
	"housekeeping":    true,
	"api_access":      true,
}

// KnownFeature reports whether name is a recognised feature flag.
func KnownFeature(name string) bool {
	return knownFeatures[name]
}

// ValidateCompanyName checks that a company name is present and within limits.
func ValidateCompanyName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("company name is required")
	}
	if utf8.RuneCountInString(name) > MaxCompanyNameLength {
		return fmt.Errorf("company name exceeds %d characters", MaxCompanyNameLength)
	}
	return nil
}

// ValidateContactName checks that a contact name is present and within limits.
func ValidateContactName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("contact name is required")
	}
	if utf8.RuneCountInString(name) > MaxContactNameLength {
		return fmt.Errorf("contact name exceeds %d characters", MaxContactNameLength)
	}
	return nil
}

// ValidateEmail checks that an address parses per RFC 5322 and is a bare
// address rather than a display-name form ("Name <a@b>").
func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return fmt.Errorf("email is required")
	}
	if len(email) > MaxEmailLength {
		return fmt.Errorf("email exceeds %d characters", MaxEmailLength)
	}
	addr, err := mail.ParseAddress(email)
	if err != nil {
		return fmt.Errorf("invalid email address")
	}
	if addr.Address != email {
		return fmt.Errorf("email must be a plain address without a display name")
	}
	return nil
}

// ValidatePropertyCount checks that the declared property count is plausible.
// The field is optional on signup, so zero passes; plan derivation treats it
// as the smallest tier.
func ValidatePropertyCount(count int) error {
	if count < 0 {
		return fmt.Errorf("property count must not be negative")
	}
	if count > MaxPropertyCount {
		return fmt.Errorf("property count exceeds %d", MaxPropertyCount)
	}
	return nil
}

// ValidateRequestedFeatures checks that every requested feature is a known
// flag and that the list contains no duplicates.
func ValidateRequestedFeatures(features []string) error {
	if len(features) > MaxRequestedFeatures {
		return fmt.Errorf("too many requested features (max %d)", MaxRequestedFeatures)
	}
	seen := make(map[string]bool, len(features))
	for _, f := range features {
		if !KnownFeature(f) {
			return fmt.Errorf("unknown feature: %s", f)
		}
		if seen[f] {
			return fmt.Errorf("duplicate feature: %s", f)
		}
		seen[f] = true
	}
	return nil
}

// ValidateSignup runs all signup field checks and returns the first failure.
func ValidateSignup(companyName, contactName, email string, propertyCount int, features []string) error {
	if err := ValidateCompanyName(companyName); err != nil {
		return err
	}
	if err := ValidateContactName(contactName); err != nil {
		return err
	}
	if err := ValidateEmail(email); err != nil {
		return err
	}
	if err := ValidatePropertyCount(propertyCount); err != nil {
		return err
	}
	return ValidateRequestedFeatures(features)
}
