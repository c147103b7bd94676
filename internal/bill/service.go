package bill

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/splitmaat/splitmaat/internal/scanning"
	"github.com/splitmaat/splitmaat/internal/split"
)

// IDGenerator generates unique IDs for bills
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

type uuidGenerator struct{}

func (g *uuidGenerator) Generate() string {
	return uuid.NewString()
}

type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// ShareResult is one party's computed share plus the shareable text the
// UI hands to WhatsApp, the clipboard, or a mail link.
type ShareResult struct {
	split.Share
	Message string `json:"message"`
}

// SplitResult is the outcome of splitting a whole bill across parties,
// with the bill's taxes and charges allocated proportionally.
type SplitResult struct {
	Adjustment float64                     `json:"adjustment"`
	Parties    map[string]split.PartyShare `json:"parties"`
}

// Service handles bill operations
type Service struct {
	db          DB
	scanner     scanning.Scanner
	storage     Storage
	idGenerator IDGenerator
	timeSource  TimeSource
}

// NewService creates a new Service with default ID generator and time source
func NewService(db DB, scanner scanning.Scanner, storage Storage) *Service {
	return &Service{
		db:          db,
		scanner:     scanner,
		storage:     storage,
		idGenerator: &uuidGenerator{},
		timeSource:  &defaultTimeSource{},
	}
}

// NewServiceWithDeps creates a new Service with custom dependencies for testing
func NewServiceWithDeps(db DB, scanner scanning.Scanner, storage Storage, idGen IDGenerator, timeSrc TimeSource) *Service {
	return &Service{
		db:          db,
		scanner:     scanner,
		storage:     storage,
		idGenerator: idGen,
		timeSource:  timeSrc,
	}
}

var (
	specialChars = regexp.MustCompile(`[^a-zA-Z0-9\s\-_]`)
	multiSpace   = regexp.MustCompile(`\s+`)
)

// sanitizeFilename cleans up phone-generated filenames before storage.
func sanitizeFilename(filename string) string {
	ext := filepath.Ext(filename)
	base := strings.TrimSuffix(filename, ext)

	base = specialChars.ReplaceAllString(base, "")
	base = multiSpace.ReplaceAllString(base, " ")
	base = strings.TrimSpace(base)

	if len(base) > 50 {
		base = base[:50]
	}
	if base == "" {
		base = "bill"
	}
	return base + ext
}

// ProcessBill uploads a bill image, scans it, normalizes the extraction,
// and persists the result.
func (s *Service) ProcessBill(filename string, data []byte, contentType string) (*Bill, error) {
	id := s.idGenerator.Generate()
	now := s.timeSource.Now()

	cleanFilename := sanitizeFilename(filename)
	savedPath, err := s.storage.Save(fmt.Sprintf("%s_%s", id, cleanFilename), data)
	if err != nil {
		return nil, fmt.Errorf("saving file: %w", err)
	}

	raw, err := s.scanner.ScanBill(data, contentType)
	if err != nil {
		slog.Error("Failed to scan bill",
			"filename", filename,
			"content_type", contentType,
			"file_size", len(data),
			"error", err,
		)
		// No bill without a scan; drop the orphaned image.
		s.storage.Delete(savedPath)
		return nil, fmt.Errorf("scanning bill: %w", err)
	}

	bill, err := Normalize(raw)
	if err != nil {
		s.storage.Delete(savedPath)
		return nil, fmt.Errorf("normalizing bill: %w", err)
	}

	bill.ID = id
	bill.Filename = savedPath
	bill.ContentType = contentType
	bill.CreatedAt = now
	bill.UpdatedAt = now

	if err := s.db.SaveBill(bill); err != nil {
		s.storage.Delete(savedPath)
		return nil, fmt.Errorf("saving bill to database: %w", err)
	}

	return bill, nil
}

// GetBill retrieves a bill by ID
func (s *Service) GetBill(id string) (*Bill, error) {
	bill, err := s.db.GetBill(id)
	if err != nil {
		return nil, fmt.Errorf("getting bill: %w", err)
	}
	return bill, nil
}

// ListBills returns all bills
func (s *Service) ListBills() ([]*Bill, error) {
	bills, err := s.db.ListBills()
	if err != nil {
		return nil, fmt.Errorf("listing bills: %w", err)
	}
	return bills, nil
}

// DeleteBill removes a bill and its image
func (s *Service) DeleteBill(id string) error {
	bill, err := s.db.GetBill(id)
	if err != nil {
		return fmt.Errorf("getting bill for deletion: %w", err)
	}

	if bill.Filename != "" {
		if err := s.storage.Delete(bill.Filename); err != nil {
			slog.Warn("Failed to delete file", "filename", bill.Filename, "error", err)
		}
	}

	if err := s.db.DeleteBill(id); err != nil {
		return fmt.Errorf("deleting bill from database: %w", err)
	}
	return nil
}

// GetBillImage retrieves the stored receipt image for a bill
func (s *Service) GetBillImage(id string) ([]byte, string, error) {
	bill, err := s.db.GetBill(id)
	if err != nil {
		return nil, "", fmt.Errorf("getting bill: %w", err)
	}

	data, err := s.storage.Get(bill.Filename)
	if err != nil {
		return nil, "", fmt.Errorf("getting bill image: %w", err)
	}

	return data, bill.ContentType, nil
}

// UpdateItem applies a manual correction to one line item's description
// and rate, persists the updated bill, and returns it. Corrections repair
// extraction mistakes; they cannot break the bill's invariants.
func (s *Service) UpdateItem(id string, index int, description string, rate float64) (*Bill, error) {
	bill, err := s.db.GetBill(id)
	if err != nil {
		return nil, fmt.Errorf("getting bill: %w", err)
	}
	if index < 0 || index >= len(bill.Items) {
		return nil, fmt.Errorf("item index %d out of range", index)
	}
	if rate < 0 {
		return nil, fmt.Errorf("rate cannot be negative")
	}

	description = strings.TrimSpace(description)
	if description == "" {
		description = PlaceholderDescription
	}
	bill.Items[index].Description = description
	bill.Items[index].Rate = rate
	bill.Items[index].Amount = rate * float64(bill.Items[index].Quantity)
	bill.UpdatedAt = s.timeSource.Now()

	if err := s.db.SaveBill(bill); err != nil {
		return nil, fmt.Errorf("saving bill: %w", err)
	}
	return bill, nil
}

// Share computes one party's share of a bill with a percentage tip and
// builds the shareable summary text.
func (s *Service) Share(id string, sel split.Selection, tipPercent float64) (*ShareResult, error) {
	bill, err := s.db.GetBill(id)
	if err != nil {
		return nil, fmt.Errorf("getting bill: %w", err)
	}

	share, err := split.ComputeShare(bill.SplitItems(), sel, tipPercent)
	if err != nil {
		return nil, err
	}

	return &ShareResult{
		Share:   share,
		Message: shareMessage(bill, sel, tipPercent, share),
	}, nil
}

// Split computes every party's share of a bill, allocating the bill's
// unallocated adjustment (taxes, service charges, round-off)
// proportionally to claimed subtotals.
func (s *Service) Split(id string, selections map[string]split.Selection) (*SplitResult, error) {
	bill, err := s.db.GetBill(id)
	if err != nil {
		return nil, fmt.Errorf("getting bill: %w", err)
	}

	adjustment := split.Round2(bill.UnallocatedAdjustment())
	parties, err := split.SplitBill(bill.SplitItems(), adjustment, selections)
	if err != nil {
		return nil, err
	}

	return &SplitResult{
		Adjustment: adjustment,
		Parties:    parties,
	}, nil
}

// shareMessage renders the share text, one line per claimed item in
// presentation order.
func shareMessage(bill *Bill, sel split.Selection, tipPercent float64, share split.Share) string {
	indexes := make([]int, 0, len(sel))
	for index, quantity := range sel {
		if quantity > 0 {
			indexes = append(indexes, index)
		}
	}
	if len(indexes) == 0 {
		return "No items selected to share."
	}
	sort.Ints(indexes)

	var lines []string
	for _, index := range indexes {
		quantity := sel[index]
		item := bill.Items[index]
		lineTotal := split.Round2(float64(quantity) * item.Rate)
		lines = append(lines, fmt.Sprintf("%dx %s - $%.2f", quantity, item.Description, lineTotal))
	}

	tipLabel := strconv.FormatFloat(tipPercent, 'f', -1, 64)
	return fmt.Sprintf("My bill split:\n\n%s\n\nSubtotal: $%.2f\nTip (%s%%): $%.2f\nTotal: $%.2f",
		strings.Join(lines, "\n"), share.Subtotal, tipLabel, share.Tip, share.Total)
}
