// Package receipt builds booking confirmations: the text receipt, the signed
// check-in payload and its QR code, and a printable PDF.
package receipt

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"courtclub/internal/models"

	"github.com/phpdave11/gofpdf"
	"github.com/skip2/go-qrcode"
)

var (
	ErrMalformedPayload = errors.New("malformed check-in payload")
	ErrBadSignature     = errors.New("check-in signature mismatch")
	ErrNoSecret         = errors.New("receipt secret is empty")
)

const (
	payloadFields = 5
	qrSize        = 256
)

// CheckIn is what a verified QR payload says about the booking.
type CheckIn struct {
	ReservationID string      `json:"reservation_id"`
	PlayerName    string      `json:"player_name"`
	Date          models.Date `json:"date"`
	TimeLabel     string      `json:"time_label"`
}

// Issuer signs check-in payloads with an HMAC-SHA256 key.
type Issuer struct {
	secret   []byte
	clubName string
}

func NewIssuer(secret, clubName string) (*Issuer, error) {
	if secret == "" {
		return nil, ErrNoSecret
	}
	if clubName == "" {
		clubName = models.DefaultClubName
	}
	return &Issuer{secret: []byte(secret), clubName: clubName}, nil
}

// Payload returns id|name|date|time|signature.
func (i *Issuer) Payload(res models.Reservation) string {
	data := strings.Join([]string{
		clean(res.ID), clean(res.PlayerName), res.Date.String(), clean(res.TimeLabel),
	}, "|")
	return data + "|" + i.sign(data)
}

func (i *Issuer) sign(data string) string {
	h := hmac.New(sha256.New, i.secret)
	h.Write([]byte(data))
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil))
}

// Verify checks the signature of a scanned payload.
func (i *Issuer) Verify(payload string) (CheckIn, error) {
	parts := strings.Split(strings.TrimSpace(payload), "|")
	if len(parts) != payloadFields {
		return CheckIn{}, ErrMalformedPayload
	}
	data := strings.Join(parts[:payloadFields-1], "|")
	if !hmac.Equal([]byte(i.sign(data)), []byte(parts[payloadFields-1])) {
		return CheckIn{}, ErrBadSignature
	}
	date, err := models.ParseDate(parts[2])
	if err != nil {
		return CheckIn{}, fmt.Errorf("%w: %w", ErrMalformedPayload, err)
	}
	return CheckIn{ReservationID: parts[0], PlayerName: parts[1], Date: date, TimeLabel: parts[3]}, nil
}

// QRCode encodes the signed payload as a PNG.
func (i *Issuer) QRCode(res models.Reservation) ([]byte, error) {
	png, err := qrcode.Encode(i.Payload(res), qrcode.Medium, qrSize)
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}
	return png, nil
}

// Lines is the human readable receipt.
func Lines(res models.Reservation) []string {
	return []string{
		"Booking Confirmed!",
		fmt.Sprintf("Player: %s", res.PlayerName),
		fmt.Sprintf("Date: %s", LongDate(res.Date)),
		fmt.Sprintf("Time: %s (%d mins)", res.TimeLabel, res.DurationMinutes),
		fmt.Sprintf("Player type: %s", res.PlayerType),
		fmt.Sprintf("Total: $%s", formatAmount(res.TotalPrice)),
		fmt.Sprintf("Reservation: %s", res.ID),
		fmt.Sprintf("We've sent your receipt to your chosen %s account.", res.NotificationChannel),
	}
}

// Issue implements the receipt step of a successful booking.
func (i *Issuer) Issue(res models.Reservation) (*models.Receipt, error) {
	png, err := i.QRCode(res)
	if err != nil {
		return nil, err
	}
	lines := Lines(res)
	return &models.Receipt{
		ReservationID:  res.ID,
		Lines:          lines,
		Text:           strings.Join(lines, "\n"),
		CheckInPayload: i.Payload(res),
		QRCodePNG:      png,
	}, nil
}

// WritePDF renders a one page receipt with the QR code.
func (i *Issuer) WritePDF(w io.Writer, res models.Reservation) error {
	png, err := i.QRCode(res)
	if err != nil {
		return err
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(20, 20, 20)
	pdf.SetTitle(fmt.Sprintf("%s receipt %s", i.clubName, res.ID), true)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFont("Arial", "B", 20)
	pdf.CellFormat(0, 15, tr(i.clubName), "", 1, "C", false, 0, "")
	pdf.Ln(5)

	lines := Lines(res)
	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(0, 10, tr(lines[0]), "", 1, "L", false, 0, "")
	pdf.SetFont("Arial", "", 12)
	pdf.MultiCell(110, 9, tr(strings.Join(lines[1:], "\n")), "", "L", false)

	imgOpts := gofpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("qr", imgOpts, bytes.NewReader(png))
	pdf.ImageOptions("qr", 140, 45, 50, 50, false, imgOpts, 0, "")

	pdf.SetY(-30)
	pdf.SetFont("Arial", "I", 10)
	pdf.CellFormat(0, 10, "Show this code at the front desk to check in.", "T", 0, "C", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return fmt.Errorf("render pdf: %w", err)
	}
	_, err = buf.WriteTo(w)
	return err
}

// LongDate formats a date as "Oct 19th, 2026".
func LongDate(d models.Date) string {
	t := d.In(time.UTC)
	return fmt.Sprintf("%s %d%s, %d", t.Format("Jan"), t.Day(), ordinal(t.Day()), t.Year())
}

func ordinal(day int) string {
	if day%100 >= 11 && day%100 <= 13 {
		return "th"
	}
	switch day % 10 {
	case 1:
		return "st"
	case 2:
		return "nd"
	case 3:
		return "rd"
	default:
		return "th"
	}
}

func formatAmount(v float64) string {
	if v == float64(int64(v)) {
		return fmt.Sprintf("%d", int64(v))
	}
	return fmt.Sprintf("%.2f", v)
}

func clean(s string) string {
	return strings.ReplaceAll(s, "|", "/")
}
