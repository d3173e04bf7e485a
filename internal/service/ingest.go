package service

import (
	"bufio"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// Profile describes one bank's CSV export. Column indexes are zero-based.
// Either AmountCol (signed, negative is a debit) or DebitCol/CreditCol must
// be set.
type Profile struct {
	Name         string            `toml:"name"`
	ImportPrefix string            `toml:"import_prefix"`
	Currency     string            `toml:"currency"`
	DateFormat   string            `toml:"date_format"`
	HasHeader    bool              `toml:"has_header"`
	Delimiter    string            `toml:"delimiter"`
	DateCol      int               `toml:"date_col"`
	DescCol      int               `toml:"desc_col"`
	AmountCol    *int              `toml:"amount_col"`
	DebitCol     *int              `toml:"debit_col"`
	CreditCol    *int              `toml:"credit_col"`
	BalanceCol   *int              `toml:"balance_col"`
	TypeCol      *int              `toml:"type_col"`
	TypeMap      map[string]string `toml:"type_map"`
	AmountStrip  string            `toml:"amount_strip"`
}

// ProfilesFile is the on-disk layout of the import profiles file.
type ProfilesFile struct {
	Version int                `toml:"version"`
	Account map[string]Profile `toml:"account"`
}

// LoadProfiles reads import profiles keyed by their table name. A profile
// without a name imports into an account named after its key.
func LoadProfiles(path string) (map[string]Profile, error) {
	var file ProfilesFile
	if _, err := toml.DecodeFile(path, &file); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	out := make(map[string]Profile, len(file.Account))
	for key, p := range file.Account {
		if strings.TrimSpace(p.Name) == "" {
			p.Name = key
		}
		p, err := p.normalize()
		if err != nil {
			return nil, fmt.Errorf("profile %q: %w", key, err)
		}
		out[key] = p
	}
	return out, nil
}

func (p Profile) normalize() (Profile, error) {
	if p.DateFormat == "" {
		p.DateFormat = "2006-01-02"
	}
	if p.Delimiter == "" {
		p.Delimiter = ","
	}
	if len([]rune(p.Delimiter)) != 1 {
		return p, validationf("delimiter must be one character, got %q", p.Delimiter)
	}
	if p.AmountCol == nil && p.DebitCol == nil && p.CreditCol == nil {
		return p, validationf("one of amount_col, debit_col or credit_col is required")
	}
	if strings.TrimSpace(p.Currency) == "" {
		return p, validationf("currency is required")
	}
	return p, nil
}

// MatchProfile picks the profile whose import_prefix is the longest prefix
// of the file's base name. Equal-length prefixes go to the smallest key.
func MatchProfile(profiles map[string]Profile, path string) (Profile, bool) {
	base := filepath.Base(path)
	var best Profile
	found := false
	for _, key := range slices.Sorted(maps.Keys(profiles)) {
		p := profiles[key]
		if p.ImportPrefix == "" || !hasPrefixFold(base, p.ImportPrefix) {
			continue
		}
		if !found || len(p.ImportPrefix) > len(best.ImportPrefix) {
			best, found = p, true
		}
	}
	return best, found
}

// IngestService turns CSV exports into ledger imports.
type IngestService struct {
	Ledger *Ledger
	Logger *slog.Logger
}

// IngestResult summarizes an import. Errors holds rows that could not be
// parsed; they are left out of the import rather than failing it.
type IngestResult struct {
	Imported int
	Skipped  int
	Errors   []error
}

// ImportFiles parses every file with profile p, then imports all parsed rows
// as one undoable command.
func (s *IngestService) ImportFiles(ctx context.Context, p Profile, paths ...string) (IngestResult, error) {
	p, err := p.normalize()
	if err != nil {
		return IngestResult{}, err
	}
	batches := make([][]NewTransaction, len(paths))
	rowErrs := make([][]error, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	for i, path := range paths {
		g.Go(func() error {
			f, err := os.Open(path)
			if err != nil {
				return fmt.Errorf("open %s: %w", path, err)
			}
			defer f.Close()
			batches[i], rowErrs[i] = ParseCSV(f, p)
			for j, e := range rowErrs[i] {
				rowErrs[i][j] = fmt.Errorf("%s: %w", filepath.Base(path), e)
			}
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return IngestResult{}, err
	}

	var all []NewTransaction
	res := IngestResult{}
	for i := range paths {
		all = append(all, batches[i]...)
		res.Errors = append(res.Errors, rowErrs[i]...)
	}
	if len(all) > 0 {
		imported, err := s.Ledger.ImportTransactions(ctx, all)
		if err != nil {
			return res, err
		}
		res.Imported, res.Skipped = imported.Imported, imported.Skipped
	}
	s.logger().Info("files ingested", "component", "ingest", "files", len(paths), "imported", res.Imported, "skipped", res.Skipped, "errors", len(res.Errors))
	return res, nil
}

func (s *IngestService) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}

// ParseCSV reads rows in file order. Malformed rows are reported by the
// physical line they start on and skipped.
func ParseCSV(r io.Reader, p Profile) ([]NewTransaction, []error) {
	var out []NewTransaction
	var errs []error
	csvr := csv.NewReader(bufio.NewReader(r))
	csvr.TrimLeadingSpace = true
	csvr.FieldsPerRecord = -1
	csvr.Comma = []rune(p.Delimiter)[0]
	records := 0
	for {
		rec, err := csvr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			// *csv.ParseError already names its line.
			errs = append(errs, err)
			continue
		}
		records++
		if records == 1 && p.HasHeader {
			continue
		}
		nt, err := p.parseRecord(rec)
		if err != nil {
			line, _ := csvr.FieldPos(0)
			errs = append(errs, fmt.Errorf("line %d: %w", line, err))
			continue
		}
		out = append(out, nt)
	}
	return out, errs
}

func (p Profile) parseRecord(rec []string) (NewTransaction, error) {
	col := func(i int) (string, error) {
		if i < 0 || i >= len(rec) {
			return "", fmt.Errorf("missing column %d", i)
		}
		return strings.TrimSpace(rec[i]), nil
	}
	nt := NewTransaction{Account: p.Name, Currency: p.Currency}

	raw, err := col(p.DateCol)
	if err != nil {
		return nt, fmt.Errorf("date: %w", err)
	}
	if nt.PostedDate, err = time.Parse(p.DateFormat, raw); err != nil {
		return nt, fmt.Errorf("date: %w", err)
	}
	if nt.Description, err = col(p.DescCol); err != nil {
		return nt, fmt.Errorf("description: %w", err)
	}

	amount := func(name string, i *int) (decimal.Decimal, error) {
		if i == nil {
			return decimal.Zero, nil
		}
		raw, err := col(*i)
		if err != nil {
			return decimal.Zero, fmt.Errorf("%s: %w", name, err)
		}
		d, err := p.parseAmount(raw)
		if err != nil {
			return decimal.Zero, fmt.Errorf("%s: %w", name, err)
		}
		return d, nil
	}
	if p.AmountCol != nil {
		signed, err := amount("amount", p.AmountCol)
		if err != nil {
			return nt, err
		}
		if signed.IsNegative() {
			nt.Debit = toFloat(signed.Neg())
		} else {
			nt.Credit = toFloat(signed)
		}
	} else {
		debit, err := amount("debit", p.DebitCol)
		if err != nil {
			return nt, err
		}
		credit, err := amount("credit", p.CreditCol)
		if err != nil {
			return nt, err
		}
		nt.Debit, nt.Credit = toFloat(debit.Abs()), toFloat(credit.Abs())
	}
	balance, err := amount("balance", p.BalanceCol)
	if err != nil {
		return nt, err
	}
	nt.Balance = toFloat(balance)

	switch {
	case p.TypeCol != nil:
		raw, err := col(*p.TypeCol)
		if err != nil {
			return nt, fmt.Errorf("type: %w", err)
		}
		nt.Type = raw
		for code, typ := range p.TypeMap {
			if fold(code) == fold(raw) {
				nt.Type = typ
				break
			}
		}
	case nt.Debit > 0:
		nt.Type = "Debit"
	default:
		nt.Type = "Credit"
	}
	if _, err := ParseTransactionType(nt.Type); err != nil {
		return nt, fmt.Errorf("type: %w", err)
	}
	return nt, nil
}

func (p Profile) parseAmount(s string) (decimal.Decimal, error) {
	s = strings.ReplaceAll(s, ",", "")
	for _, r := range p.AmountStrip {
		s = strings.ReplaceAll(s, string(r), "")
	}
	s = strings.TrimPrefix(strings.TrimSpace(s), "+")
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}
