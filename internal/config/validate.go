package config

import (
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"
)

// Charsets accepted by import.charset.
var supportedCharsets = []string{"utf-8", "iso-8859-1", "windows-1252"}

// MinPasswordLength is the lower bound for generated passwords.
const MinPasswordLength = 8

// Validate performs business-rule validation on the loaded configuration.
// It must be called after loading; Load calls it automatically.
func (c *Config) Validate() error {
	if err := validateBaseURL(c.Identity.BaseURL); err != nil {
		return fmt.Errorf("identity.base_url: %w", err)
	}
	if strings.TrimSpace(c.Identity.Realm) == "" {
		return fmt.Errorf("identity.realm must not be empty")
	}
	if err := validateBaseURL(c.Chat.BaseURL); err != nil {
		return fmt.Errorf("chat.base_url: %w", err)
	}
	if c.Chat.PurgeWindow <= 0 {
		return fmt.Errorf("chat.purge_window must be > 0 (got %v)", c.Chat.PurgeWindow)
	}
	if c.Identity.CallTimeout < 0 || c.Chat.CallTimeout < 0 || c.Database.CallTimeout < 0 {
		return fmt.Errorf("call_timeout must be >= 0")
	}

	if err := c.Import.validate(); err != nil {
		return fmt.Errorf("import: %w", err)
	}

	return nil
}

func (i *ImportConfig) validate() error {
	i.Charset = strings.ToLower(strings.TrimSpace(i.Charset))
	if !isSupportedCharset(i.Charset) {
		return fmt.Errorf("charset %q is not supported (want one of %s)", i.Charset, strings.Join(supportedCharsets, ", "))
	}
	if utf8.RuneCountInString(i.Delimiter) != 1 {
		return fmt.Errorf("delimiter must be a single character (got %q)", i.Delimiter)
	}
	if i.AgencyRoleDelimiter == "" || i.AgencyRoleInnerDelim == "" {
		return fmt.Errorf("agency role delimiters must not be empty")
	}
	if i.AgencyRoleDelimiter == i.AgencyRoleInnerDelim {
		return fmt.Errorf("agency role delimiters must differ (both %q)", i.AgencyRoleDelimiter)
	}
	if i.PasswordLength < MinPasswordLength {
		return fmt.Errorf("password_length must be >= %d (got %d)", MinPasswordLength, i.PasswordLength)
	}
	if strings.TrimSpace(i.ProtocolPath) == "" {
		return fmt.Errorf("protocol_path must not be empty")
	}
	return nil
}

// DelimiterRune returns the CSV field delimiter. Validate guarantees it is a
// single rune.
func (i ImportConfig) DelimiterRune() rune {
	r, _ := utf8.DecodeRuneInString(i.Delimiter)
	return r
}

func isSupportedCharset(cs string) bool {
	for _, s := range supportedCharsets {
		if s == cs {
			return true
		}
	}
	return false
}

func validateBaseURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https (got %q)", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("host must not be empty")
	}
	return nil
}
