package biz

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/jszwec/csvutil"

	"AeroSentry/internal/data"
	pkglog "AeroSentry/pkg/log"
)

// ErrNoFlightFound is returned when an email yields no usable flight details.
var ErrNoFlightFound = errors.BadRequest("NO_FLIGHT_FOUND", "no flight number and date could be extracted")

// csvBookingRow is the accepted CSV batch layout.
type csvBookingRow struct {
	PNR           string `csv:"pnr"`
	Airline       string `csv:"airline"`
	FlightNumber  string `csv:"flight_number"`
	DepartureDate string `csv:"departure_date"`
	Origin        string `csv:"origin"`
	Destination   string `csv:"destination"`
	BookingClass  string `csv:"booking_class"`
	Seat          string `csv:"seat"`
}

// RowError describes one rejected CSV row.
type RowError struct {
	Row    int    `json:"row"`
	Reason string `json:"reason"`
}

// ImportResult summarizes a booking import batch.
type ImportResult struct {
	Imported   int        `json:"imported"`
	Duplicates int        `json:"duplicates"`
	Rejected   []RowError `json:"rejected,omitempty"`
}

// Extraction patterns for airline confirmation emails.
var (
	pnrContextRe = regexp.MustCompile(`(?i)(?:confirmation(?:\s+(?:code|number))?|booking\s+reference|record\s+locator|PNR)\s*[:#]?\s*([A-Z0-9]{6})\b`)
	pnrTokenRe   = regexp.MustCompile(`\b([A-Z0-9]{6})\b`)
	flightRe     = regexp.MustCompile(`\b([A-Z]{2})\s?(\d{1,4})\b`)
	isoDateRe    = regexp.MustCompile(`\b(\d{4}-\d{2}-\d{2})\b`)
	usDateRe     = regexp.MustCompile(`\b(\d{1,2}/\d{1,2}/\d{4})\b`)
	routeRe      = regexp.MustCompile(`\b([A-Z]{3})\s*(?:to|→|-)\s*([A-Z]{3})\b`)
)

// csvDateLayouts are tried in order when parsing departure dates.
var csvDateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04",
	"2006-01-02",
	"01/02/2006",
}

// BookingUseCase imports bookings from CSV batches and airline
// confirmation emails, and serves booking lookups.
type BookingUseCase struct {
	bookings BookingRepo
	emails   EmailConnectionRepo
	logger   *pkglog.LogHelper
}

// NewBookingUseCase creates a new booking use case.
func NewBookingUseCase(bookings BookingRepo, emails EmailConnectionRepo, logger log.Logger) *BookingUseCase {
	return &BookingUseCase{
		bookings: bookings,
		emails:   emails,
		logger:   pkglog.NewLogHelper(logger),
	}
}

// ImportCSV decodes a CSV batch and persists each valid row. Bad rows are
// rejected individually and reported; they never fail the batch. Only an
// unreadable header fails the whole import.
func (uc *BookingUseCase) ImportCSV(ctx context.Context, userID int64, r io.Reader) (*ImportResult, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	dec, err := csvutil.NewDecoder(reader)
	if err != nil {
		return nil, errors.BadRequest("INVALID_CSV", fmt.Sprintf("unreadable CSV header: %v", err))
	}

	result := &ImportResult{}
	rowNum := 0
	for {
		rowNum++
		var row csvBookingRow
		if err := dec.Decode(&row); err == io.EOF {
			break
		} else if err != nil {
			result.Rejected = append(result.Rejected, RowError{Row: rowNum, Reason: err.Error()})
			continue
		}

		booking, reason := uc.rowToBooking(userID, &row)
		if booking == nil {
			result.Rejected = append(result.Rejected, RowError{Row: rowNum, Reason: reason})
			continue
		}

		created, err := uc.bookings.CreateBooking(ctx, booking)
		if err != nil {
			result.Rejected = append(result.Rejected, RowError{Row: rowNum, Reason: err.Error()})
			continue
		}
		if created {
			result.Imported++
		} else {
			result.Duplicates++
		}
	}

	uc.logger.Booking("CSV booking import completed",
		"user_id", userID,
		"imported", result.Imported,
		"duplicates", result.Duplicates,
		"rejected", len(result.Rejected))

	return result, nil
}

// rowToBooking validates one CSV row. A nil booking comes with the
// rejection reason.
func (uc *BookingUseCase) rowToBooking(userID int64, row *csvBookingRow) (*data.Booking, string) {
	flightNumber := normalizeFlightNumber(row.FlightNumber)
	if flightNumber == "" {
		return nil, "missing or invalid flight_number"
	}

	departure, ok := parseDepartureDate(row.DepartureDate)
	if !ok {
		return nil, "missing or invalid departure_date"
	}

	booking := &data.Booking{
		UserID:        userID,
		PNR:           strings.ToUpper(strings.TrimSpace(row.PNR)),
		Airline:       strings.ToUpper(strings.TrimSpace(row.Airline)),
		FlightNumber:  flightNumber,
		DepartureDate: departure,
		Origin:        strings.ToUpper(strings.TrimSpace(row.Origin)),
		Destination:   strings.ToUpper(strings.TrimSpace(row.Destination)),
		BookingClass:  normalizeBookingClass(row.BookingClass),
		Seat:          strings.TrimSpace(row.Seat),
		Status:        data.BookingConfirmed,
	}
	if booking.Airline == "" && len(flightNumber) >= 2 {
		booking.Airline = flightNumber[:2]
	}
	return booking, ""
}

// ImportEmail extracts one booking from a raw airline confirmation email.
// HTML is stripped to text first, then the flight number, departure date,
// PNR, route and cabin class are pulled out with pattern matching. An
// email without both a flight number and a date is rejected.
func (uc *BookingUseCase) ImportEmail(ctx context.Context, userID int64, rawEmail string) (*data.Booking, bool, error) {
	text := emailToText(rawEmail)

	flightNumber, airline := extractFlight(text)
	departure, dateOK := extractDate(text)
	if flightNumber == "" || !dateOK {
		return nil, false, ErrNoFlightFound
	}

	booking := &data.Booking{
		UserID:        userID,
		PNR:           extractPNR(text),
		Airline:       airline,
		FlightNumber:  flightNumber,
		DepartureDate: departure,
		BookingClass:  normalizeBookingClass(extractClass(text)),
		Status:        data.BookingConfirmed,
	}
	booking.Origin, booking.Destination = extractRoute(text)

	raw := rawEmail
	if len(raw) > 4096 {
		raw = raw[:4096]
	}
	if snapshot, err := jsonString(map[string]string{"source": "email", "excerpt": raw}); err == nil {
		booking.Raw = &snapshot
	}

	created, err := uc.bookings.CreateBooking(ctx, booking)
	if err != nil {
		return nil, false, err
	}

	uc.logger.Booking("Email booking import completed",
		"user_id", userID,
		"flight_number", booking.FlightNumber,
		"pnr", booking.PNR,
		"created", created)

	return booking, created, nil
}

// LinkEmailAccount stores an email connection for future inbox syncing.
// The access token is encrypted at rest by the repository.
func (uc *BookingUseCase) LinkEmailAccount(ctx context.Context, userID int64, provider, address, accessToken string) error {
	if address == "" {
		return errors.BadRequest("INVALID_EMAIL", "email address is required")
	}
	conn := &data.EmailConnection{
		UserID:       userID,
		Provider:     provider,
		EmailAddress: address,
		Active:       true,
	}
	return uc.emails.SaveConnection(ctx, conn, accessToken)
}

// ListUpcoming returns confirmed bookings departing within the window.
func (uc *BookingUseCase) ListUpcoming(ctx context.Context, window time.Duration) ([]*data.Booking, error) {
	return uc.bookings.ListUpcoming(ctx, window)
}

// ListByUser returns one user's bookings.
func (uc *BookingUseCase) ListByUser(ctx context.Context, userID int64) ([]*data.Booking, error) {
	return uc.bookings.ListByUser(ctx, userID)
}

// emailToText renders an email body to plain text. HTML markup is parsed
// and stripped; plain text passes through unchanged.
func emailToText(raw string) string {
	if !strings.Contains(raw, "<") {
		return raw
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return raw
	}
	doc.Find("script,style").Remove()
	return doc.Text()
}

// extractFlight finds the first airline-code flight designator and returns
// it normalized, plus the carrier code.
func extractFlight(text string) (flightNumber, airline string) {
	m := flightRe.FindStringSubmatch(text)
	if m == nil {
		return "", ""
	}
	return m[1] + m[2], m[1]
}

// extractDate finds an ISO or US-style date in the text.
func extractDate(text string) (time.Time, bool) {
	if m := isoDateRe.FindStringSubmatch(text); m != nil {
		if t, err := time.Parse("2006-01-02", m[1]); err == nil {
			return t, true
		}
	}
	if m := usDateRe.FindStringSubmatch(text); m != nil {
		if t, err := time.Parse("1/2/2006", m[1]); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// extractPNR looks for a confirmation code near booking keywords first,
// then falls back to any standalone six-character token mixing letters
// and digits.
func extractPNR(text string) string {
	if m := pnrContextRe.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	for _, m := range pnrTokenRe.FindAllStringSubmatch(text, -1) {
		token := m[1]
		if strings.IndexFunc(token, isASCIILetter) >= 0 && strings.IndexFunc(token, isASCIIDigit) >= 0 {
			return token
		}
	}
	return ""
}

// extractRoute finds an airport pair like "JFK to LHR" or "SFO-ORD".
func extractRoute(text string) (origin, destination string) {
	m := routeRe.FindStringSubmatch(text)
	if m == nil {
		return "", ""
	}
	return m[1], m[2]
}

// extractClass finds the first cabin class keyword.
func extractClass(text string) string {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "first class"), strings.Contains(lower, "first cabin"):
		return "First"
	case strings.Contains(lower, "business"):
		return "Business"
	default:
		return "Economy"
	}
}

// normalizeFlightNumber uppercases and validates a flight designator.
func normalizeFlightNumber(s string) string {
	s = strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), " ", ""))
	if !flightRe.MatchString(s) {
		return ""
	}
	return s
}

// normalizeBookingClass maps free-form cabin descriptions onto the enum.
func normalizeBookingClass(s string) data.BookingClass {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "business", "business class", "c", "j":
		return data.ClassBusiness
	case "first", "first class", "f":
		return data.ClassFirst
	default:
		return data.ClassEconomy
	}
}

// parseDepartureDate tries the accepted CSV date layouts in order.
func parseDepartureDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range csvDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func jsonString(v interface{}) (string, error) {
	b, err := json.Marshal(v)
	return string(b), err
}

func isASCIILetter(r rune) bool { return r >= 'A' && r <= 'Z' }

func isASCIIDigit(r rune) bool { return r >= '0' && r <= '9' }
