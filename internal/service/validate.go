package service

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	usernameMin = 4
	usernameMax = 64
	passwordMin = 8
	passwordMax = 64
	roomNameMax = 64
	termMax     = 64
)

func isAlnum(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}

func allRunes(s string, ok func(rune) bool) bool {
	for _, r := range s {
		if !ok(r) {
			return false
		}
	}
	return true
}

func ValidateUsername(s string) error {
	if len(s) < usernameMin || len(s) > usernameMax || !allRunes(s, isAlnum) {
		return validation(fmt.Sprintf("username must be %d-%d letters or digits", usernameMin, usernameMax))
	}
	return nil
}

func ValidatePassword(s string) error {
	if len(s) < passwordMin || len(s) > passwordMax || !allRunes(s, isAlnum) {
		return validation(fmt.Sprintf("password must be %d-%d letters or digits", passwordMin, passwordMax))
	}
	return nil
}

// NormalizeRoomName 去掉首尾空白后校验房间名。
func NormalizeRoomName(s string) (string, error) {
	s = strings.TrimSpace(s)
	ok := allRunes(s, func(r rune) bool { return isAlnum(r) || r == ' ' })
	if s == "" || len(s) > roomNameMax || !ok {
		return "", validation(fmt.Sprintf("room name must be 1-%d letters, digits or spaces", roomNameMax))
	}
	return s, nil
}

func ValidateMessage(body string, max int) error {
	if strings.TrimSpace(body) == "" {
		return validation("message must not be empty")
	}
	if !utf8.ValidString(body) {
		return validation("message must be valid UTF-8")
	}
	if max > 0 && utf8.RuneCountInString(body) > max {
		return validation(fmt.Sprintf("message must be at most %d characters", max))
	}
	return nil
}

func ValidateSearchTerm(s string) error {
	if s == "" || len(s) > termMax || !allRunes(s, isAlnum) {
		return validation(fmt.Sprintf("search term must be 1-%d letters or digits", termMax))
	}
	return nil
}
