package report

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"
	"gopkg.in/yaml.v3"

	"github.com/martinsuchenak/ipusage/internal/cidr"
	"github.com/martinsuchenak/ipusage/internal/inventory"
	"github.com/martinsuchenak/ipusage/internal/pager"
	"github.com/martinsuchenak/ipusage/internal/render"
	"github.com/martinsuchenak/ipusage/internal/usage"
	"github.com/martinsuchenak/ipusage/pkg/model"
)

// mockSource is an in-memory inventory for testing
type mockSource struct {
	subnets   map[string]*model.Subnet
	pages     []pager.Page[model.Interface]
	fetchErr  error
	fetchCall atomic.Int32
}

func newMockSource(subnet *model.Subnet, pages ...pager.Page[model.Interface]) *mockSource {
	return &mockSource{
		subnets: map[string]*model.Subnet{subnet.ID: subnet},
		pages:   pages,
	}
}

func (m *mockSource) Subnet(ctx context.Context, id string) (*model.Subnet, error) {
	if s, ok := m.subnets[id]; ok {
		clone := *s
		return &clone, nil
	}
	return nil, inventory.ErrSubnetNotFound
}

func (m *mockSource) InterfacePages(subnetID string) pager.PageFunc[model.Interface] {
	return func(ctx context.Context, cursor string) (pager.Page[model.Interface], error) {
		m.fetchCall.Add(1)
		if m.fetchErr != nil {
			return pager.Page[model.Interface]{}, m.fetchErr
		}
		i := 0
		if cursor != "" {
			fmt.Sscanf(cursor, "%d", &i)
		}
		if i >= len(m.pages) {
			return pager.Page[model.Interface]{}, nil
		}
		page := m.pages[i]
		if i+1 < len(m.pages) {
			page.Next = fmt.Sprint(i + 1)
		}
		return page, nil
	}
}

func iface(id, ip string) model.Interface {
	return model.Interface{ID: id, PrivateIP: ip, Status: "in-use", Type: "interface"}
}

func TestReconciler_Run(t *testing.T) {
	src := newMockSource(
		&model.Subnet{ID: "subnet-1", Name: "web", CIDR: "10.0.0.0/28"},
		pager.Page[model.Interface]{Items: []model.Interface{iface("eni-1", "10.0.0.4"), iface("eni-2", "10.0.0.9")}},
		pager.Page[model.Interface]{Items: []model.Interface{iface("eni-3", "10.0.0.12")}},
	)

	rep, err := NewReconciler(src, Options{}, nil).Run(context.Background(), "subnet-1")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if rep.ID == "" || rep.GeneratedAt.IsZero() {
		t.Error("Expected report id and timestamp")
	}
	if len(rep.Records) != 16 {
		t.Fatalf("Expected 16 records, got %d", len(rep.Records))
	}
	if rep.Records[9].Usage != "in-use: interface" || rep.Records[9].InterfaceID != "eni-2" {
		t.Errorf("Unexpected record %+v", rep.Records[9])
	}
	if rep.Records[12].InterfaceID != "eni-3" {
		t.Error("Expected the second page to be classified")
	}

	s := rep.Summary
	if s.SubnetName != "web" || s.Total != 16 || s.Available != 11 || s.InUse != 3 || s.Free != 8 {
		t.Errorf("Unexpected summary %+v", s)
	}
	if src.fetchCall.Load() != 2 {
		t.Errorf("Expected 2 page calls, got %d", src.fetchCall.Load())
	}
}

func TestReconciler_SmallBlockEndToEnd(t *testing.T) {
	src := newMockSource(&model.Subnet{ID: "subnet-t", CIDR: "10.0.0.0/30"})

	rep, err := NewReconciler(src, Options{}, nil).Run(context.Background(), "subnet-t")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	want := []string{usage.LabelNetwork, usage.LabelRouter, usage.LabelDNS, usage.LabelBroadcast}
	for i, label := range want {
		if rep.Records[i].Usage != label {
			t.Errorf("Position %d = %q, want %q", i, rep.Records[i].Usage, label)
		}
	}
}

func TestReconciler_IPv6(t *testing.T) {
	src := newMockSource(
		&model.Subnet{ID: "subnet-6", CIDR: "10.0.0.0/24", IPv6CIDRs: []string{"2001:db8::/124"}},
		pager.Page[model.Interface]{Items: []model.Interface{iface("eni-6", "2001:db8::a")}},
	)

	rep, err := NewReconciler(src, Options{IPv6: true}, nil).Run(context.Background(), "subnet-6")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if rep.Summary.CIDR != "2001:db8::/124" || len(rep.Records) != 16 {
		t.Errorf("Unexpected IPv6 report %+v", rep.Summary)
	}
	if rep.Records[10].Kind != model.UsageInUse {
		t.Errorf("Expected 2001:db8::a in use, got %q", rep.Records[10].Usage)
	}
}

func TestReconciler_StageErrors(t *testing.T) {
	tests := []struct {
		name      string
		src       *mockSource
		subnetID  string
		opts      Options
		stage     Stage
		check     func(error) bool
		noFetches bool
	}{
		{
			name:      "Unknown subnet",
			src:       newMockSource(&model.Subnet{ID: "subnet-1", CIDR: "10.0.0.0/24"}),
			subnetID:  "subnet-x",
			stage:     StageDescribe,
			check:     func(err error) bool { return errors.Is(err, inventory.ErrSubnetNotFound) },
			noFetches: true,
		},
		{
			name:     "Malformed CIDR",
			src:      newMockSource(&model.Subnet{ID: "subnet-1", CIDR: "10.0.0.1/24"}),
			subnetID: "subnet-1",
			stage:    StageEnumerate,
			check: func(err error) bool {
				var e *cidr.InvalidBlockError
				return errors.As(err, &e)
			},
			noFetches: true,
		},
		{
			name:     "Block too large",
			src:      newMockSource(&model.Subnet{ID: "subnet-1", CIDR: "10.0.0.0/16"}),
			subnetID: "subnet-1",
			opts:     Options{MaxAddresses: 1024},
			stage:    StageEnumerate,
			check: func(err error) bool {
				var e *cidr.BlockTooLargeError
				return errors.As(err, &e)
			},
			noFetches: true,
		},
		{
			name:     "IPv6 /64 block",
			src:      newMockSource(&model.Subnet{ID: "subnet-1", CIDR: "10.0.0.0/24", IPv6CIDRs: []string{"2001:db8:1::/64"}}),
			subnetID: "subnet-1",
			opts:     Options{IPv6: true},
			stage:    StageEnumerate,
			check: func(err error) bool {
				var e *cidr.BlockTooLargeError
				return errors.As(err, &e) && strings.Contains(err.Error(), "18446744073709551616")
			},
			noFetches: true,
		},
		{
			name:     "No IPv6 block",
			src:      newMockSource(&model.Subnet{ID: "subnet-1", CIDR: "10.0.0.0/24"}),
			subnetID: "subnet-1",
			opts:     Options{IPv6: true},
			stage:    StageEnumerate,
			check: func(err error) bool {
				var e *cidr.InvalidBlockError
				return errors.As(err, &e)
			},
			noFetches: true,
		},
		{
			name: "Listing method missing",
			src: func() *mockSource {
				m := newMockSource(&model.Subnet{ID: "subnet-1", CIDR: "10.0.0.0/24"})
				m.fetchErr = fmt.Errorf("describe: %w", pager.ErrMethodNotFound)
				return m
			}(),
			subnetID: "subnet-1",
			stage:    StageFetch,
			check: func(err error) bool {
				var e *pager.MethodError
				return errors.As(err, &e)
			},
		},
		{
			name: "Listing service failure",
			src: func() *mockSource {
				m := newMockSource(&model.Subnet{ID: "subnet-1", CIDR: "10.0.0.0/24"})
				m.fetchErr = errors.New("throttled")
				return m
			}(),
			subnetID: "subnet-1",
			stage:    StageFetch,
			check: func(err error) bool {
				var e *pager.ServiceError
				return errors.As(err, &e)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rep, err := NewReconciler(tt.src, tt.opts, nil).Run(context.Background(), tt.subnetID)
			if rep != nil {
				t.Error("Expected no report on failure")
			}
			var stageErr *StageError
			if !errors.As(err, &stageErr) {
				t.Fatalf("Expected StageError, got %v", err)
			}
			if stageErr.Stage != tt.stage {
				t.Errorf("Expected stage %s, got %s", tt.stage, stageErr.Stage)
			}
			if !tt.check(err) {
				t.Errorf("Unexpected cause %v", err)
			}
			if tt.noFetches && tt.src.fetchCall.Load() != 0 {
				t.Errorf("Expected no interface listing calls, got %d", tt.src.fetchCall.Load())
			}
		})
	}
}

func TestReconciler_RunMany(t *testing.T) {
	src := newMockSource(&model.Subnet{ID: "subnet-a", CIDR: "10.0.0.0/28"})
	src.subnets["subnet-b"] = &model.Subnet{ID: "subnet-b", CIDR: "10.0.1.0/29"}
	src.subnets["subnet-c"] = &model.Subnet{ID: "subnet-c", CIDR: "10.0.2.0/30"}
	rec := NewReconciler(src, Options{}, nil)

	reports, err := rec.RunMany(context.Background(), []string{"subnet-c", "subnet-a", "subnet-b"}, 2)
	if err != nil {
		t.Fatalf("RunMany() error = %v", err)
	}
	wantTotals := []int{4, 16, 8}
	for i, rep := range reports {
		if rep.Summary.Total != wantTotals[i] {
			t.Errorf("Report %d total = %d, want %d", i, rep.Summary.Total, wantTotals[i])
		}
	}

	_, err = rec.RunMany(context.Background(), []string{"subnet-a", "subnet-x"}, 2)
	var stageErr *StageError
	if !errors.As(err, &stageErr) || stageErr.SubnetID != "subnet-x" {
		t.Errorf("Expected StageError for subnet-x, got %v", err)
	}
}

// cancellingSource cancels the batch context when one subnet is described
type cancellingSource struct {
	*mockSource
	cancelOn string
	cancel   context.CancelFunc
}

func (c *cancellingSource) Subnet(ctx context.Context, id string) (*model.Subnet, error) {
	if id == c.cancelOn {
		c.cancel()
		// let the next job reach the queue before this one finishes
		time.Sleep(20 * time.Millisecond)
	}
	return c.mockSource.Subnet(ctx, id)
}

func TestReconciler_RunManyCancelled(t *testing.T) {
	for i := 0; i < 5; i++ {
		ctx, cancel := context.WithCancel(context.Background())
		mock := newMockSource(&model.Subnet{ID: "subnet-a", CIDR: "10.0.0.0/28"})
		mock.subnets["subnet-b"] = &model.Subnet{ID: "subnet-b", CIDR: "10.0.1.0/28"}
		mock.subnets["subnet-c"] = &model.Subnet{ID: "subnet-c", CIDR: "10.0.2.0/28"}
		src := &cancellingSource{mockSource: mock, cancelOn: "subnet-a", cancel: cancel}

		reports, err := NewReconciler(src, Options{}, nil).RunMany(ctx, []string{"subnet-a", "subnet-b", "subnet-c"}, 1)
		cancel()

		if err == nil {
			t.Fatalf("Expected an error after cancellation, got %d reports", len(reports))
		}
		if reports != nil {
			t.Errorf("Expected no reports after cancellation, got %d", len(reports))
		}
		if !errors.Is(err, context.Canceled) && !errors.Is(err, ErrNotRun) {
			t.Errorf("Expected cancellation error, got %v", err)
		}
	}
}

func sampleReport(t *testing.T) *model.Report {
	t.Helper()
	src := newMockSource(
		&model.Subnet{ID: "subnet-1", Name: "web", CIDR: "10.0.0.0/29"},
		pager.Page[model.Interface]{Items: []model.Interface{iface("eni-1", "10.0.0.5")}},
	)
	rep, err := NewReconciler(src, Options{}, nil).Run(context.Background(), "subnet-1")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	return rep
}

func TestFormatLines(t *testing.T) {
	rep := sampleReport(t)
	lines := FormatLines(rep.Records, NewPalette(false))

	if len(lines) != 8 {
		t.Fatalf("Expected 8 lines, got %d", len(lines))
	}
	want := "  5 | 10.0.0.5        | in-use: interface          "
	if lines[5] != want {
		t.Errorf("Line 5 = %q, want %q", lines[5], want)
	}
	width := render.VisibleWidth(lines[0])
	for i, line := range lines {
		if render.VisibleWidth(line) != width {
			t.Errorf("Line %d has width %d, want %d", i, render.VisibleWidth(line), width)
		}
	}
}

func TestFormatLines_Colour(t *testing.T) {
	rep := sampleReport(t)
	lines := FormatLines(rep.Records, NewPalette(true))

	if !strings.Contains(lines[4], "\x1b[") {
		t.Errorf("Expected escape sequences in coloured line %q", lines[4])
	}
	if render.StripANSI(lines[4]) != render.StripANSI(FormatLines(rep.Records, NewPalette(false))[4]) {
		t.Error("Expected colour to change only escape sequences")
	}
}

func TestWriteTable(t *testing.T) {
	rep := sampleReport(t)
	lines := FormatLines(rep.Records, NewPalette(false))
	colWidth := render.VisibleWidth(lines[0])

	var buf bytes.Buffer
	if err := WriteTable(&buf, lines, colWidth*2, false); err != nil {
		t.Fatalf("WriteTable() error = %v", err)
	}
	rows := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(rows) != 4 {
		t.Errorf("Expected 4 rows for 8 lines in 2 columns, got %d", len(rows))
	}

	buf.Reset()
	err := WriteTable(&buf, lines, colWidth-1, false)
	var tooSmall *render.TerminalTooSmallError
	if !errors.As(err, &tooSmall) {
		t.Errorf("Expected TerminalTooSmallError, got %v", err)
	}

	buf.Reset()
	if err := WriteTable(&buf, lines, 0, true); err != nil {
		t.Fatalf("WriteTable(oneColumn) error = %v", err)
	}
	if strings.Count(buf.String(), "\n") != 8 {
		t.Errorf("Expected 8 rows in one-column mode, got %q", buf.String())
	}
}

func TestWriteSummary(t *testing.T) {
	var buf bytes.Buffer
	err := WriteSummary(&buf, model.Summary{
		SubnetID: "subnet-1", SubnetName: "web", CIDR: "10.0.0.0/24",
		Total: 256, Available: 251, Free: 240, InUse: 11,
	})
	if err != nil {
		t.Fatalf("WriteSummary() error = %v", err)
	}

	out := buf.String()
	for _, want := range []string{
		"Summary:",
		"Subnet id....................: subnet-1",
		"Subnet name..................: web",
		"Subnet CIDR..................: 10.0.0.0/24",
		"IPs in this Subnet...........: 256",
		"IPs available in this Subnet.: 251",
		"IPs free.....................: 240",
		"IP/s in use..................: 11",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected %q in summary:\n%s", want, out)
		}
	}

	buf.Reset()
	WriteSummary(&buf, model.Summary{SubnetID: "subnet-2"})
	if strings.Contains(buf.String(), "Subnet name") {
		t.Error("Expected no name line for unnamed subnets")
	}
}

func TestExport(t *testing.T) {
	rep := sampleReport(t)

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		if err := Export(&buf, rep, FormatJSON); err != nil {
			t.Fatalf("Export() error = %v", err)
		}
		var decoded model.Report
		if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
			t.Fatalf("Invalid JSON: %v", err)
		}
		if decoded.ID != rep.ID || len(decoded.Records) != len(rep.Records) {
			t.Errorf("Unexpected decoded report %+v", decoded.Summary)
		}
	})

	t.Run("yaml", func(t *testing.T) {
		var buf bytes.Buffer
		if err := Export(&buf, rep, "YAML"); err != nil {
			t.Fatalf("Export() error = %v", err)
		}
		var decoded model.Report
		if err := yaml.Unmarshal(buf.Bytes(), &decoded); err != nil {
			t.Fatalf("Invalid YAML: %v", err)
		}
		if decoded.Summary.InUse != 1 {
			t.Errorf("Expected 1 in use, got %d", decoded.Summary.InUse)
		}
	})

	t.Run("xlsx", func(t *testing.T) {
		var buf bytes.Buffer
		if err := Export(&buf, rep, FormatXLSX); err != nil {
			t.Fatalf("Export() error = %v", err)
		}
		f, err := excelize.OpenReader(&buf)
		if err != nil {
			t.Fatalf("Invalid workbook: %v", err)
		}
		defer f.Close()

		rows, err := f.GetRows(addressSheet)
		if err != nil {
			t.Fatalf("GetRows() error = %v", err)
		}
		if len(rows) != len(rep.Records)+1 {
			t.Errorf("Expected %d rows, got %d", len(rep.Records)+1, len(rows))
		}
		if rows[6][1] != "10.0.0.5" || rows[6][2] != "in-use: interface" {
			t.Errorf("Unexpected row %v", rows[6])
		}
	})

	t.Run("unknown", func(t *testing.T) {
		err := Export(&bytes.Buffer{}, rep, "csv")
		if !errors.Is(err, ErrUnknownFormat) {
			t.Errorf("Expected ErrUnknownFormat, got %v", err)
		}
	})
}
