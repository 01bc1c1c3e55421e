package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rl1809/oms-inventory/internal/core/domain"
	"github.com/rl1809/oms-inventory/internal/port"
)

const (
	orderDateLayout        = "060102"
	maxOrderSequence       = 999
	maxOrderNumberAttempts = 3
)

var orderNumberPattern = regexp.MustCompile(`^(\d{2})(\d{2})(\d{2})-(\d{3})$`)

// OrderSequencer mints "YYMMDD-NNN" order numbers from the highest number
// already stored for the day. It keeps no state of its own, so two callers
// can compute the same number; see GenerateOrderNumberWithRetry.
type OrderSequencer struct {
	orders port.OrderNumberRepository
	opts   options
}

func NewOrderSequencer(orders port.OrderNumberRepository, opts ...Option) *OrderSequencer {
	return &OrderSequencer{orders: orders, opts: newOptions(opts)}
}

func FormatOrderDate(date time.Time) string {
	return date.Format(orderDateLayout)
}

func (s *OrderSequencer) GetNextSequenceNumber(ctx context.Context, dateString string) (int, error) {
	last, found, err := s.orders.MaxOrderNumberForDate(ctx, dateString)
	if err != nil {
		return 0, fmt.Errorf("query last order number: %w", err)
	}
	if !found {
		return 1, nil
	}

	parsed, ok := ParseOrderNumber(last)
	if !ok {
		return 0, fmt.Errorf("malformed order number %q for %s", last, dateString)
	}
	if parsed.Sequence >= maxOrderSequence {
		return 0, &domain.SequenceExhaustedError{DateString: dateString}
	}
	return parsed.Sequence + 1, nil
}

// GenerateOrderNumber returns the next number for date, or for today when
// date is zero.
func (s *OrderSequencer) GenerateOrderNumber(ctx context.Context, date time.Time) (string, error) {
	if date.IsZero() {
		date = s.opts.now()
	}
	dateString := FormatOrderDate(date)

	seq, err := s.GetNextSequenceNumber(ctx, dateString)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%03d", dateString, seq), nil
}

// GenerateOrderNumberWithRetry generates a number and hands it to insert. When
// insert reports domain.ErrDuplicateOrderNumber the number is regenerated, up
// to three attempts in total. This narrows the collision window but does not
// close it under sustained concurrent load.
func (s *OrderSequencer) GenerateOrderNumberWithRetry(ctx context.Context, date time.Time, insert func(ctx context.Context, orderNumber string) error) (string, error) {
	if date.IsZero() {
		date = s.opts.now()
	}

	for attempt := 1; attempt <= maxOrderNumberAttempts; attempt++ {
		number, err := s.GenerateOrderNumber(ctx, date)
		if err != nil {
			return "", err
		}

		err = insert(ctx, number)
		if err == nil {
			return number, nil
		}
		if !errors.Is(err, domain.ErrDuplicateOrderNumber) {
			return "", err
		}

		s.opts.logger.WithFields(logrus.Fields{
			"orderNumber": number,
			"attempt":     attempt,
		}).Warn("ORDER_NUMBER:CONFLICT")
		if attempt < maxOrderNumberAttempts {
			s.opts.metrics.OrderNumberRetried()
		}
	}

	return "", fmt.Errorf("order number for %s still taken after %d attempts: %w",
		FormatOrderDate(date), maxOrderNumberAttempts, domain.ErrDuplicateOrderNumber)
}

// ParseOrderNumber splits a strictly formatted order number. It does not
// range-check the date or sequence; use IsValidOrderNumber for that.
func ParseOrderNumber(s string) (*domain.ParsedOrderNumber, bool) {
	m := orderNumberPattern.FindStringSubmatch(s)
	if m == nil {
		return nil, false
	}

	yy, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	day, _ := strconv.Atoi(m[3])
	seq, _ := strconv.Atoi(m[4])
	year := 2000 + yy

	return &domain.ParsedOrderNumber{
		Year:       year,
		Month:      month,
		Day:        day,
		Sequence:   seq,
		DateString: m[1] + m[2] + m[3],
		FullDate:   time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.Local),
	}, true
}

func IsValidOrderNumber(s string) bool {
	p, ok := ParseOrderNumber(s)
	if !ok {
		return false
	}
	return p.Month >= 1 && p.Month <= 12 &&
		p.Day >= 1 && p.Day <= 31 &&
		p.Sequence >= 1 && p.Sequence <= maxOrderSequence
}
