package handler

import (
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"bvcregistry/internal/registry/handler/mocks"
	"bvcregistry/internal/registry/models"
	dErrors "bvcregistry/pkg/domain-errors"
	"bvcregistry/pkg/testutil"
)

//go:generate mockgen -source=handler.go -destination=mocks/registry-mocks.go -package=mocks Service
type RegistryHandlerSuite struct {
	suite.Suite
}

func TestRegistryHandlerSuite(t *testing.T) {
	suite.Run(t, new(RegistryHandlerSuite))
}

func newTestRouter(t *testing.T) (http.Handler, *mocks.MockService) {
	t.Helper()
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)
	mockService := mocks.NewMockService(ctrl)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	r := chi.NewRouter()
	New(mockService, logger, nil).Register(r)
	return r, mockService
}

func (s *RegistryHandlerSuite) TestCreateReturns201() {
	router, mockService := newTestRouter(s.T())

	req := models.CreateRequest{
		Title:         "Reentrancy in withdraw",
		Description:   "D",
		Platform:      "ETH",
		DiscoveryDate: "2023-05-15",
	}
	mockService.EXPECT().Create(gomock.Any(), req).Return(models.CreateResponse{
		Identifiers: models.Identifiers{BVCID: "BVC-ETH-2023-001", BaseID: "0xabc"},
		Version:     "1",
		Ledger:      models.TxReceipt{TxHandle: "0x01"},
		Content:     models.ContentPointer{Hash: "QmX"},
	}, nil)

	rr := testutil.DoRequest(router, testutil.NewJSONRequest(s.T(), http.MethodPost, "/vulnerabilities", req))

	s.Equal(http.StatusCreated, rr.Code)
	var resp models.CreateResponse
	testutil.DecodeJSON(s.T(), rr, &resp)
	s.Equal("BVC-ETH-2023-001", resp.Identifiers.BVCID)
	s.Equal("1", resp.Version)
}

func (s *RegistryHandlerSuite) TestCreateValidationErrorReturns400() {
	router, mockService := newTestRouter(s.T())

	req := models.CreateRequest{Title: "T"}
	mockService.EXPECT().Create(gomock.Any(), req).
		Return(models.CreateResponse{}, dErrors.New(dErrors.CodeBadRequest, "description: required field is missing"))

	rr := testutil.DoRequest(router, testutil.NewJSONRequest(s.T(), http.MethodPost, "/vulnerabilities", req))

	s.Equal(http.StatusBadRequest, rr.Code)
	var body map[string]string
	testutil.DecodeJSON(s.T(), rr, &body)
	s.Equal("bad_request", body["error"])
	s.Contains(body["error_description"], "description")
}

func (s *RegistryHandlerSuite) TestCreateRejectsNonJSONContentType() {
	router, _ := newTestRouter(s.T())

	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/vulnerabilities", models.CreateRequest{})
	req.Header.Set("Content-Type", "text/plain")

	rr := testutil.DoRequest(router, req)
	s.Equal(http.StatusUnsupportedMediaType, rr.Code)
}

func (s *RegistryHandlerSuite) TestFetchReturnsView() {
	router, mockService := newTestRouter(s.T())

	mockService.EXPECT().Fetch(gomock.Any(), "BVC-ETH-2023-001").Return(models.VulnerabilityView{
		Identifiers: models.Identifiers{BVCID: "BVC-ETH-2023-001"},
		Version:     "1",
		Platform:    "ETH",
		Status:      "active",
	}, nil)

	rr := testutil.DoRequest(router, testutil.NewRequest(s.T(), http.MethodGet, "/vulnerabilities/BVC-ETH-2023-001"))

	s.Equal(http.StatusOK, rr.Code)
	var view models.VulnerabilityView
	testutil.DecodeJSON(s.T(), rr, &view)
	s.Equal("active", view.Status)
}

func (s *RegistryHandlerSuite) TestFetchNotFoundReturns404() {
	router, mockService := newTestRouter(s.T())

	mockService.EXPECT().Fetch(gomock.Any(), "BVC-ZZZ-2099-99999").
		Return(models.VulnerabilityView{}, dErrors.New(dErrors.CodeNotFound, "vulnerability not found"))

	rr := testutil.DoRequest(router, testutil.NewRequest(s.T(), http.MethodGet, "/vulnerabilities/BVC-ZZZ-2099-99999"))

	s.Equal(http.StatusNotFound, rr.Code)
	var body map[string]string
	testutil.DecodeJSON(s.T(), rr, &body)
	s.Equal("not_found", body["error"])
	s.Equal("vulnerability not found", body["error_description"])
}

func (s *RegistryHandlerSuite) TestListDispatch() {
	s.Run("plain list", func() {
		router, mockService := newTestRouter(s.T())
		mockService.EXPECT().List(gomock.Any()).Return(models.ListResponse{Total: 0}, nil)
		rr := testutil.DoRequest(router, testutil.NewRequest(s.T(), http.MethodGet, "/vulnerabilities"))
		s.Equal(http.StatusOK, rr.Code)
	})

	s.Run("paginated", func() {
		router, mockService := newTestRouter(s.T())
		mockService.EXPECT().ListPage(gomock.Any(), 2, 5).Return(models.ListResponse{}, nil)
		rr := testutil.DoRequest(router, testutil.NewRequest(s.T(), http.MethodGet, "/vulnerabilities?page=2&pageSize=5"))
		s.Equal(http.StatusOK, rr.Code)
	})

	s.Run("pageSize defaults when only page given", func() {
		router, mockService := newTestRouter(s.T())
		mockService.EXPECT().ListPage(gomock.Any(), 3, defaultPageSize).Return(models.ListResponse{}, nil)
		rr := testutil.DoRequest(router, testutil.NewRequest(s.T(), http.MethodGet, "/vulnerabilities?page=3"))
		s.Equal(http.StatusOK, rr.Code)
	})

	s.Run("non-integer page is 400", func() {
		router, _ := newTestRouter(s.T())
		rr := testutil.DoRequest(router, testutil.NewRequest(s.T(), http.MethodGet, "/vulnerabilities?page=two"))
		s.Equal(http.StatusBadRequest, rr.Code)
	})

	s.Run("platform filter", func() {
		router, mockService := newTestRouter(s.T())
		mockService.EXPECT().ListByPlatform(gomock.Any(), "SOL").Return(models.ListResponse{}, nil)
		rr := testutil.DoRequest(router, testutil.NewRequest(s.T(), http.MethodGet, "/vulnerabilities?platform=SOL"))
		s.Equal(http.StatusOK, rr.Code)
	})
}

func (s *RegistryHandlerSuite) TestVersions() {
	router, mockService := newTestRouter(s.T())

	mockService.EXPECT().Versions(gomock.Any(), "BVC-ETH-2023-001").Return(models.VersionsResponse{
		Identifiers: models.Identifiers{BVCID: "BVC-ETH-2023-001"},
		Versions: []models.VulnerabilityView{
			{Version: "1"},
			{Version: "2"},
		},
	}, nil)

	rr := testutil.DoRequest(router, testutil.NewRequest(s.T(), http.MethodGet, "/vulnerabilities/BVC-ETH-2023-001/versions"))

	s.Equal(http.StatusOK, rr.Code)
	var resp models.VersionsResponse
	testutil.DecodeJSON(s.T(), rr, &resp)
	s.Len(resp.Versions, 2)
	s.Equal("1", resp.Versions[0].Version)
}

func (s *RegistryHandlerSuite) TestStatusToggle() {
	s.Run("happy path", func() {
		router, mockService := newTestRouter(s.T())
		mockService.EXPECT().SetStatus(gomock.Any(), "BVC-ETH-2023-001", false).
			Return(models.StatusResponse{IsActive: false, Ledger: models.TxReceipt{TxHandle: "0x02"}}, nil)

		active := false
		rr := testutil.DoRequest(router, testutil.NewJSONRequest(s.T(), http.MethodPost, "/vulnerabilities/status",
			models.StatusRequest{ID: "BVC-ETH-2023-001", IsActive: &active}))

		s.Equal(http.StatusOK, rr.Code)
	})

	s.Run("missing id is 400", func() {
		router, _ := newTestRouter(s.T())
		active := true
		rr := testutil.DoRequest(router, testutil.NewJSONRequest(s.T(), http.MethodPost, "/vulnerabilities/status",
			models.StatusRequest{IsActive: &active}))
		s.Equal(http.StatusBadRequest, rr.Code)
	})

	s.Run("missing isActive is 400", func() {
		router, _ := newTestRouter(s.T())
		rr := testutil.DoRequest(router, testutil.NewJSONRequest(s.T(), http.MethodPost, "/vulnerabilities/status",
			models.StatusRequest{ID: "BVC-ETH-2023-001"}))
		s.Equal(http.StatusBadRequest, rr.Code)
	})
}

func (s *RegistryHandlerSuite) TestHealth() {
	s.Run("healthy", func() {
		router, mockService := newTestRouter(s.T())
		mockService.EXPECT().Health(gomock.Any()).
			Return(models.HealthResponse{Status: "ok", Ledger: "up", ContentStore: "up"}, true)
		rr := testutil.DoRequest(router, testutil.NewRequest(s.T(), http.MethodGet, "/health"))
		s.Equal(http.StatusOK, rr.Code)
	})

	s.Run("ledger down is 503", func() {
		router, mockService := newTestRouter(s.T())
		mockService.EXPECT().Health(gomock.Any()).
			Return(models.HealthResponse{Status: "unavailable", Ledger: "down", ContentStore: "up"}, false)
		rr := testutil.DoRequest(router, testutil.NewRequest(s.T(), http.MethodGet, "/health"))
		s.Equal(http.StatusServiceUnavailable, rr.Code)

		var resp models.HealthResponse
		testutil.DecodeJSON(s.T(), rr, &resp)
		s.Equal("down", resp.Ledger)
		s.Equal("up", resp.ContentStore)
	})
}
