package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// TicketNumberPrefix starts every human-readable ticket number
const TicketNumberPrefix = "SI"

// MaxTicketSeq is the largest sequence that fits the five-digit field
const MaxTicketSeq = 99999

// FormatTicketNumber renders SI-YYYY-NNNNN
func FormatTicketNumber(year, seq int) string {
	return fmt.Sprintf("%s-%04d-%05d", TicketNumberPrefix, year, seq)
}

// ParseTicketNumber splits SI-YYYY-NNNNN into its year and sequence
func ParseTicketNumber(number string) (year, seq int, err error) {
	parts := strings.Split(strings.TrimSpace(number), "-")
	if len(parts) != 3 || !strings.EqualFold(parts[0], TicketNumberPrefix) || len(parts[1]) != 4 || len(parts[2]) != 5 {
		return 0, 0, fmt.Errorf("%w: malformed ticket number %q", ErrValidation, number)
	}
	if year, err = strconv.Atoi(parts[1]); err != nil {
		return 0, 0, fmt.Errorf("%w: malformed ticket year %q", ErrValidation, number)
	}
	if seq, err = strconv.Atoi(parts[2]); err != nil || seq < 1 {
		return 0, 0, fmt.Errorf("%w: malformed ticket sequence %q", ErrValidation, number)
	}
	return year, seq, nil
}
