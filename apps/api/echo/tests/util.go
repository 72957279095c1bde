package tests

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	. "github.com/trezcool/kujifunza/apps/api/echo"
	"github.com/trezcool/kujifunza/core"
	"github.com/trezcool/kujifunza/core/completion"
	"github.com/trezcool/kujifunza/core/course"
	"github.com/trezcool/kujifunza/core/enrolment"
	"github.com/trezcool/kujifunza/core/lesson"
	"github.com/trezcool/kujifunza/core/prereq"
	"github.com/trezcool/kujifunza/core/progress"
	"github.com/trezcool/kujifunza/core/user"
	emailsvc "github.com/trezcool/kujifunza/services/email"
	eventsvc "github.com/trezcool/kujifunza/services/events"
	logsvc "github.com/trezcool/kujifunza/services/logger"
	inmemdb "github.com/trezcool/kujifunza/storage/database/inmem"
	boiledrepos "github.com/trezcool/kujifunza/storage/database/sqlboiler"
	sqlxrepos "github.com/trezcool/kujifunza/storage/database/sqlx"
	testutil "github.com/trezcool/kujifunza/tests"
)

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

func testConfig() *core.Config {
	return &core.Config{
		AppName:   "Kujifunza",
		TestMode:  true,
		SecretKey: "test-secret",
		Server: core.ServerConfig{
			JWTExpirationDelta:        time.Hour,
			JWTRefreshExpirationDelta: 4 * time.Hour,
		},
	}
}

func baseDeps(conf *core.Config) Deps {
	translator := core.NewTranslator()
	validate := core.NewValidator(translator)
	user.InitValidators(validate, translator)

	return Deps{
		Conf:           conf,
		Logger:         logsvc.NewNopLogger(),
		Validate:       validate,
		Translator:     translator,
		DisableReqLogs: true,
	}
}

// inmemApp serves users, courses, lessons and progress from memory.
type inmemApp struct {
	Server
	conf    *core.Config
	db      *inmemdb.DB
	usrRepo user.Repository
}

func setupInmem(t *testing.T) *inmemApp {
	t.Helper()
	conf := testConfig()
	db := inmemdb.NewDB()
	usrRepo := inmemdb.NewUserRepository(db)
	lsnRepo := inmemdb.NewLessonRepository(db)

	deps := baseDeps(conf)
	deps.UserSvc = user.NewService(usrRepo, deps.Validate)
	deps.CourseSvc = course.NewService(inmemdb.NewCourseRepository(db), deps.Validate)
	deps.LessonSvc = lesson.NewService(lsnRepo, prereq.NewResolver(lsnRepo), deps.Validate)
	deps.ProgressSvc = progress.NewService(lsnRepo)

	return &inmemApp{Server: NewServer(deps), conf: conf, db: db, usrRepo: usrRepo}
}

// dbApp is wired like production, on the Postgres test database.
type dbApp struct {
	Server
	conf    *core.Config
	db      *sql.DB
	usrRepo user.Repository
	mailSvc *emailsvc.ConsoleServiceMock
}

func setupDB(t *testing.T) *dbApp {
	t.Helper()
	db := testutil.PrepareDB(t)
	conf := testConfig()
	logger := logsvc.NewNopLogger()
	core.ParseEmailTemplates(conf, logger)

	usrRepo := boiledrepos.NewUserRepository(db)
	lsnRepo := boiledrepos.NewLessonRepository(db)
	mailSvc := emailsvc.NewConsoleServiceMock(conf, logger)

	deps := baseDeps(conf)
	deps.UserSvc = user.NewService(usrRepo, deps.Validate)
	deps.CourseSvc = course.NewService(boiledrepos.NewCourseRepository(db), deps.Validate)
	deps.LessonSvc = lesson.NewService(lsnRepo, prereq.NewResolver(boiledrepos.NewPrereqRepository(db)), deps.Validate)
	deps.ProgressSvc = progress.NewService(sqlxrepos.NewProgressRepository(db))
	deps.ComplSvc = completion.NewService(completion.Deps{
		DB:         db,
		Repo:       boiledrepos.NewCompletionRepository(db),
		LessonRepo: lsnRepo,
		UserRepo:   usrRepo,
		MailSvc:    mailSvc,
		Events:     eventsvc.NewLogPublisher(logger),
		Logger:     logger,
	})
	deps.EnrolmentSvc = enrolment.NewService(
		db,
		boiledrepos.NewEnrolmentRepository(db),
		sqlxrepos.NewClassroomRepository(db),
		deps.Validate,
	)

	return &dbApp{Server: NewServer(deps), conf: conf, db: db, usrRepo: usrRepo, mailSvc: mailSvc}
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

func getToken(t *testing.T, conf *core.Config, usr user.User) string {
	token, err := GenerateToken(conf, GetUserClaims(conf, usr))
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func marshalObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marshalObj() failed: %v", err)
	}
	return data
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func runHTTPTests(t *testing.T, app http.Handler, tests []httpTest) {
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			method := tt.method
			if method == "" {
				method = http.MethodGet
			}
			req, rec := newAuthRequest(method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	wantCode := tt.wantCode
	if wantCode == 0 {
		wantCode = http.StatusOK
	}
	assert.Equal(t, wantCode, rec.Code, rec.Body.String())
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

// decode unmarshals the recorded JSON body into v.
func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode() failed: %v; body %s", err, rec.Body.String())
	}
}

// do serves a single request and returns its recorder.
func do(t *testing.T, app http.Handler, method, path, token string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req, rec := newAuthRequest(method, path, token, body)
	app.ServeHTTP(rec, req)
	return rec
}

// fieldErrors decodes a 400 response into its per-field messages.
func fieldErrors(t *testing.T, rec *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	var flds map[string]string
	decode(t, rec, &flds)
	return flds
}
