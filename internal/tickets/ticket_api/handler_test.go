package ticket_api

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"gameday-ticketing/internal/logger"
	"gameday-ticketing/internal/models"
	"gameday-ticketing/internal/sse"
	tickets "gameday-ticketing/internal/tickets/service"
	"gameday-ticketing/internal/utils"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockTicketService struct {
	mock.Mock
}

func (m *MockTicketService) GetTicket(ctx context.Context, ticketID string) (*models.Ticket, error) {
	args := m.Called(ctx, ticketID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Ticket), args.Error(1)
}

func (m *MockTicketService) QRImage(ctx context.Context, ticketID string, size int) ([]byte, error) {
	args := m.Called(ctx, ticketID, size)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockTicketService) WalletPass(ctx context.Context, ticketID, platform string) (string, error) {
	args := m.Called(ctx, ticketID, platform)
	return args.String(0), args.Error(1)
}

func (m *MockTicketService) ScanTicket(ctx context.Context, qrCode, eventID, scannerID string) (*tickets.ScanResponse, error) {
	args := m.Called(ctx, qrCode, eventID, scannerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*tickets.ScanResponse), args.Error(1)
}

func (m *MockTicketService) ListScans(ctx context.Context, eventID string, limit int) ([]models.TicketScan, error) {
	args := m.Called(ctx, eventID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.TicketScan), args.Error(1)
}

type MockConfigService struct {
	mock.Mock
}

func (m *MockConfigService) GetAvailability(ctx context.Context, eventID string) (*models.Availability, error) {
	args := m.Called(ctx, eventID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Availability), args.Error(1)
}

func (m *MockConfigService) UpsertConfig(ctx context.Context, cfg *models.TicketConfig) (*models.TicketConfig, error) {
	args := m.Called(ctx, cfg)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.TicketConfig), args.Error(1)
}

type fixture struct {
	tickets *MockTicketService
	configs *MockConfigService
	scans   *sse.ScanEventEmitter
	router  http.Handler
}

func newFixture() *fixture {
	f := &fixture{
		tickets: new(MockTicketService),
		configs: new(MockConfigService),
		scans:   sse.NewScanEventEmitter(),
	}
	h := NewHandler(f.tickets, f.configs, f.scans, logger.NewConsoleLogger(nil))
	r := chi.NewRouter()
	h.PublicRoutes(r)
	h.OrganizerRoutes(r)
	h.ScannerRoutes(r)
	f.router = r
	return f
}

func (f *fixture) do(t *testing.T, method, path, body string) (*httptest.ResponseRecorder, utils.APIResponse) {
	t.Helper()
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(method, path, strings.NewReader(body)))

	var resp utils.APIResponse
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	}
	return rec, resp
}

func TestGetAvailability(t *testing.T) {
	f := newFixture()
	f.configs.On("GetAvailability", mock.Anything, "evt-1").Return(&models.Availability{
		EventID: "evt-1", Enabled: true, TotalCapacity: 10, Sold: 8, Available: 2, SalesOpen: true,
	}, nil)
	f.configs.On("GetAvailability", mock.Anything, "evt-2").Return(nil, fmt.Errorf("evt-2: %w", tickets.ErrConfigNotFound))

	rec, resp := f.do(t, http.MethodGet, "/events/evt-1/tickets/config", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, resp.Success)
	assert.Contains(t, rec.Body.String(), `"available":2`)

	rec, _ = f.do(t, http.MethodGet, "/events/evt-2/tickets/config", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpsertConfig(t *testing.T) {
	f := newFixture()
	start := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	f.configs.On("UpsertConfig", mock.Anything, mock.MatchedBy(func(cfg *models.TicketConfig) bool {
		return cfg.EventID == "evt-1" && cfg.Price == 1500 && cfg.SalesStart.Equal(start) && cfg.SalesEnd.IsZero()
	})).Return(&models.TicketConfig{EventID: "evt-1", Price: 1500}, nil)

	rec, resp := f.do(t, http.MethodPut, "/events/evt-1/tickets/config",
		`{"enabled":true,"price":1500,"total_capacity":200,"sales_start":"2026-09-01T00:00:00Z"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Ticket configuration saved", resp.Message)
	f.configs.AssertExpectations(t)
}

func TestUpsertConfigInvalid(t *testing.T) {
	f := newFixture()
	f.configs.On("UpsertConfig", mock.Anything, mock.Anything).
		Return(nil, fmt.Errorf("%w: price must not be negative", tickets.ErrInvalidConfig))

	rec, resp := f.do(t, http.MethodPut, "/events/evt-1/tickets/config", `{"price":-1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid ticket configuration", resp.Message)
}

func TestViewTicketNotFound(t *testing.T) {
	f := newFixture()
	f.tickets.On("GetTicket", mock.Anything, "t-9").Return(nil, fmt.Errorf("ticket t-9: %w", tickets.ErrTicketNotFound))

	rec, _ := f.do(t, http.MethodGet, "/tickets/t-9", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTicketQR(t *testing.T) {
	f := newFixture()
	f.tickets.On("QRImage", mock.Anything, "t-1", 256).Return([]byte("\x89PNG"), nil)
	f.tickets.On("QRImage", mock.Anything, "t-1", 512).Return([]byte("\x89PNG"), nil)

	rec, _ := f.do(t, http.MethodGet, "/tickets/t-1/qr.png", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))

	rec, _ = f.do(t, http.MethodGet, "/tickets/t-1/qr.png?size=512", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = f.do(t, http.MethodGet, "/tickets/t-1/qr.png?size=5000", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWalletPassResponses(t *testing.T) {
	f := newFixture()
	f.tickets.On("WalletPass", mock.Anything, "t-1", "apple").Return("https://wallet.example.com/t-1", nil)
	f.tickets.On("WalletPass", mock.Anything, "t-1", "palm").Return("", tickets.ErrUnsupportedPlatform)
	f.tickets.On("WalletPass", mock.Anything, "t-2", "google").Return("", nil)

	rec, _ := f.do(t, http.MethodGet, "/tickets/t-1/wallet?platform=apple", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "https://wallet.example.com/t-1")

	rec, _ = f.do(t, http.MethodGet, "/tickets/t-1/wallet?platform=palm", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = f.do(t, http.MethodGet, "/tickets/t-2/wallet?platform=google", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestScanTicketHandler(t *testing.T) {
	f := newFixture()
	f.tickets.On("ScanTicket", mock.Anything, "GDT|abc", "evt-1", "").Return(&tickets.ScanResponse{
		Result: models.ScanAlreadyUsed, Message: "Already used at 6:30 PM", ScanID: "s-1",
	}, nil)

	rec, resp := f.do(t, http.MethodPost, "/scan", `{"qr_code":"GDT|abc","event_id":"evt-1"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Already used at 6:30 PM", resp.Message)
	assert.Contains(t, rec.Body.String(), `"result":"already_used"`)
}

func TestScanTicketHandlerBadRequest(t *testing.T) {
	f := newFixture()
	f.tickets.On("ScanTicket", mock.Anything, "", "evt-1", "").Return(nil, tickets.ErrInvalidScanRequest)

	rec, _ := f.do(t, http.MethodPost, "/scan", `{"event_id":"evt-1"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = f.do(t, http.MethodPost, "/scan", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListScansHandler(t *testing.T) {
	f := newFixture()
	f.tickets.On("ListScans", mock.Anything, "evt-1", 25).Return([]models.TicketScan{
		{ScanID: "s-1", EventID: "evt-1", Result: models.ScanValid},
	}, nil)

	rec, resp := f.do(t, http.MethodGet, "/events/evt-1/scans?limit=25", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1 scans", resp.Message)
}

func TestStreamScans(t *testing.T) {
	f := newFixture()
	srv := httptest.NewServer(f.router)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/events/evt-1/scans/stream", nil)
	require.NoError(t, err)
	res, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, "text/event-stream", res.Header.Get("Content-Type"))

	reader := bufio.NewReader(res.Body)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "event: connected\n", line)

	// The subscription is registered before the connected frame is written.
	f.scans.Emit(models.ScanEvent{ScanID: "s-1", EventID: "evt-2", Result: models.ScanValid})
	f.scans.Emit(models.ScanEvent{ScanID: "s-2", EventID: "evt-1", Result: models.ScanValid, Message: "Welcome, Sam"})

	var frame []string
	for {
		line, err = reader.ReadString('\n')
		require.NoError(t, err)
		if strings.HasPrefix(line, "event: scan") {
			frame = append(frame, line)
			for {
				line, err = reader.ReadString('\n')
				require.NoError(t, err)
				if line == "\n" {
					break
				}
				frame = append(frame, line)
			}
			break
		}
	}

	require.Len(t, frame, 3)
	assert.Equal(t, "id: s-2\n", frame[1])
	assert.Contains(t, frame[2], `"message":"Welcome, Sam"`)
}
