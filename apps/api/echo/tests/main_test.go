package tests

import (
	"bytes"
	"encoding/json"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"reflect"
	"testing"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	. "github.com/trezcool/elimu/apps/api/echo"
	"github.com/trezcool/elimu/core"
	"github.com/trezcool/elimu/core/access"
	"github.com/trezcool/elimu/core/catalog"
	"github.com/trezcool/elimu/core/certificate"
	"github.com/trezcool/elimu/core/enrollment"
	"github.com/trezcool/elimu/core/progression"
	"github.com/trezcool/elimu/core/user"
	certsvc "github.com/trezcool/elimu/services/certificate"
	emailsvc "github.com/trezcool/elimu/services/email"
	logsvc "github.com/trezcool/elimu/services/logger"
	notifsvc "github.com/trezcool/elimu/services/notification"
	inmemdb "github.com/trezcool/elimu/storage/database/inmem"
	testutil "github.com/trezcool/elimu/tests"
)

var (
	db   *inmemdb.DB
	app  *Server
	conf *core.Config

	usrRepo  user.Repository
	catRepo  catalog.Repository
	payments *inmemdb.PaymentChecker
	notifier *notifsvc.RecorderService

	usrSvc    *user.Service
	enrollSvc *enrollment.Service

	errMissingToken = httpErr{Error: "missing or malformed jwt"}
	errPermDenied   = httpErr{Error: "permission denied"}
)

func TestMain(m *testing.M) {
	conf = testutil.NewConfig()
	logger := logsvc.NewStdLogger(log.New(os.Stdout, "TEST : ", log.LstdFlags))

	validate := validator.New()
	lang := en.New()
	translator, _ := ut.New(lang, lang).GetTranslator("en")
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	core.ParseEmailTemplates(conf, logger)

	// set up DB & repos
	db = inmemdb.NewDB()
	usrRepo = inmemdb.NewUserRepository(db)
	catRepo = inmemdb.NewCatalogRepository(db)
	enrRepo := inmemdb.NewEnrollmentRepository(db)
	progRepo := inmemdb.NewProgressionRepository(db)
	certRepo := inmemdb.NewCertificateRepository(db)
	payments = inmemdb.NewPaymentChecker(db)

	// set up services
	mailSvc := emailsvc.NewConsoleServiceMock(conf)
	notifier = notifsvc.NewRecorderService()

	usrSvc = user.NewService(usrRepo, mailSvc, conf)
	catSvc := catalog.NewService(catRepo)
	progSvc := progression.NewService(progRepo, catRepo, enrRepo)
	certSvc := certificate.NewService(certRepo)
	gate := access.NewGate(catRepo, payments, progSvc)
	enrollSvc = enrollment.NewService(enrollment.ServiceDeps{
		Repo:         enrRepo,
		CatalogRepo:  catRepo,
		UserRepo:     usrRepo,
		Gate:         gate,
		Progression:  progSvc,
		Certificates: certSvc,
		Mail:         mailSvc,
		Notifier:     notifier,
		Logger:       logger,
		Conf:         conf,
	})

	// set up server
	app = NewServer(ServerDeps{
		Conf:           conf,
		Logger:         logger,
		DisableReqLogs: true,
		UserSvc:        usrSvc,
		CatalogSvc:     catSvc,
		EnrollSvc:      enrollSvc,
		ProgSvc:        progSvc,
		CertSvc:        certSvc,
		CertRenderer:   certsvc.NewHTMLRenderer(),
		Validate:       validate,
		Translator:     translator,
	})

	os.Exit(m.Run())
}

func resetDB(t *testing.T) {
	t.Helper()
	db.Reset()
	emailsvc.ClearSentMessages()
	notifier.Clear()
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
	extra    interface{}
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func getToken(t *testing.T, usr user.User) string {
	t.Helper()
	claims := GetUserClaims(conf, usr)
	token, err := GenerateToken(conf, claims)
	if err != nil {
		t.Fatalf("getToken(): %v", err)
	}
	return token
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj(): %v", err)
	}
	return data
}

func marchallList(t *testing.T, objs ...interface{}) []byte {
	data, err := json.Marshal(objs)
	if err != nil {
		t.Fatalf("marchallList(): %v", err)
	}
	return data
}

func unmarchallObj(t *testing.T, rec *httptest.ResponseRecorder, obj interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), obj); err != nil {
		t.Fatalf("unmarchallObj(): %v; body = %v", err, rec.Body.String())
	}
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	if reflect.DeepEqual(j1, j2) {
		return true, nil
	}
	return false, nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v; body = %v", rec.Code, tt.wantCode, rec.Body.String())
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

func checkCode(t *testing.T, rec *httptest.ResponseRecorder, wantCode int) {
	t.Helper()
	if rec.Code != wantCode {
		t.Fatalf("failed! code = %v; wantCode %v; body = %v", rec.Code, wantCode, rec.Body.String())
	}
}
