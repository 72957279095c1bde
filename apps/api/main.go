package main

import (
	"context"
	"database/sql"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof"

	echoapi "github.com/trezcool/kujifunza/apps/api/echo"
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
	jobsvc "github.com/trezcool/kujifunza/services/jobs"
	logsvc "github.com/trezcool/kujifunza/services/logger"
	"github.com/trezcool/kujifunza/storage/database"
	boiledrepos "github.com/trezcool/kujifunza/storage/database/sqlboiler"
	sqlxrepos "github.com/trezcool/kujifunza/storage/database/sqlx"
)

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	zl, err := logsvc.NewZap(conf)
	if err != nil {
		log.Fatalf("setting up zap: %v", err)
	}
	logger := logsvc.NewRollbarLogger(zl.Named("api"), conf)
	defer logger.Sync()
	dbLogger := logsvc.NewRollbarLogger(zl.Named("db"), conf)

	db, err := setUpDB(conf)
	if err != nil {
		logger.Fatal("setting up database", err)
	}
	defer func() {
		if err = db.Close(); err != nil {
			dbLogger.Error("failed to close", err)
		}
	}()

	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf, logger)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}

	var events core.EventPublisher = eventsvc.NewLogPublisher(logger)
	if conf.Redis.Address != "" {
		pub, err := eventsvc.NewRedisPublisher(conf)
		if err != nil {
			logger.Fatal("setting up redis publisher", err)
		}
		defer pub.Close()
		events = pub
	}

	// =========================================================================
	// Initialize App

	logger.Info("application initializing", map[string]interface{}{"version": conf.Build})
	defer logger.Info("application stopped")

	translator := core.NewTranslator()
	validate := core.NewValidator(translator)
	user.InitValidators(validate, translator)

	core.ParseEmailTemplates(conf, logger)

	usrRepo := boiledrepos.NewUserRepository(db)
	lsnRepo := boiledrepos.NewLessonRepository(db)

	usrSvc := user.NewService(usrRepo, validate)
	courseSvc := course.NewService(boiledrepos.NewCourseRepository(db), validate)
	lsnSvc := lesson.NewService(lsnRepo, prereq.NewResolver(boiledrepos.NewPrereqRepository(db)), validate)
	complSvc := completion.NewService(completion.Deps{
		DB:         db,
		Repo:       boiledrepos.NewCompletionRepository(db),
		LessonRepo: lsnRepo,
		UserRepo:   usrRepo,
		MailSvc:    mailSvc,
		Events:     events,
		Logger:     logger,
	})
	progressSvc := progress.NewService(sqlxrepos.NewProgressRepository(db))
	enrolSvc := enrolment.NewService(
		db,
		boiledrepos.NewEnrolmentRepository(db),
		sqlxrepos.NewClassroomRepository(db),
		validate,
	)

	// =========================================================================
	// Start Jobs

	scheduler := jobsvc.NewScheduler(complSvc, logger)
	if err = scheduler.Start(conf.Jobs.ReconcileSchedule); err != nil {
		logger.Fatal("starting scheduler", err)
	}

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)

	if conf.Server.DebugAddress != "" {
		go func() {
			if err := http.ListenAndServe(conf.Server.DebugAddress, http.DefaultServeMux); err != nil {
				logger.Error("debug server closed", err)
			}
		}()
	}

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(echoapi.Deps{
		Conf:         conf,
		Logger:       logger,
		Validate:     validate,
		Translator:   translator,
		UserSvc:      usrSvc,
		CourseSvc:    courseSvc,
		LessonSvc:    lsnSvc,
		ComplSvc:     complSvc,
		ProgressSvc:  progressSvc,
		EnrolmentSvc: enrolSvc,
	})

	go server.Start()

	// =========================================================================
	// Shutdown

	select {
	case err = <-server.Errors():
		logger.Error("server error", err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		scheduler.Stop(ctx)

		// asking listener to shutdown and shed load
		if err = server.Shutdown(ctx); err != nil {
			logger.Error("could not stop server gracefully", err)

			if err = server.Close(); err != nil {
				logger.Error("could not force stop server", err)
			}
		}
	}
}

func setUpDB(conf *core.Config) (*sql.DB, error) {
	if err := database.CreateIfNotExist(conf); err != nil {
		return nil, err
	}

	db, err := database.Open(conf)
	if err != nil {
		return nil, err
	}

	if err = database.Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}
