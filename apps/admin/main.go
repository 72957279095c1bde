package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"

	"github.com/trezcool/kujifunza/core"
	"github.com/trezcool/kujifunza/core/completion"
	"github.com/trezcool/kujifunza/core/enrolment"
	"github.com/trezcool/kujifunza/core/user"
	emailsvc "github.com/trezcool/kujifunza/services/email"
	eventsvc "github.com/trezcool/kujifunza/services/events"
	logsvc "github.com/trezcool/kujifunza/services/logger"
	"github.com/trezcool/kujifunza/storage/database"
	boiledrepos "github.com/trezcool/kujifunza/storage/database/sqlboiler"
	sqlxrepos "github.com/trezcool/kujifunza/storage/database/sqlx"
)

func main() {
	conf := core.NewConfig()

	zl, err := logsvc.NewZap(conf)
	errAndDie(err)
	logger := logsvc.NewRollbarLogger(zl.Named("admin"), conf)
	defer logger.Sync()

	db, err := database.Open(conf)
	errAndDie(err)
	defer db.Close()

	translator := core.NewTranslator()
	validate := core.NewValidator(translator)
	user.InitValidators(validate, translator)
	core.ParseEmailTemplates(conf, logger)

	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf, logger)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}

	usrRepo := boiledrepos.NewUserRepository(db)
	cli := commandLine{
		db:      db,
		usrRepo: usrRepo,
		enrolSvc: enrolment.NewService(
			db,
			boiledrepos.NewEnrolmentRepository(db),
			sqlxrepos.NewClassroomRepository(db),
			validate,
		),
		complSvc: completion.NewService(completion.Deps{
			DB:         db,
			Repo:       boiledrepos.NewCompletionRepository(db),
			LessonRepo: boiledrepos.NewLessonRepository(db),
			UserRepo:   usrRepo,
			MailSvc:    mailSvc,
			Events:     eventsvc.NewLogPublisher(logger),
			Logger:     logger,
		}),
		out: os.Stdout,
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			fmt.Fprintln(os.Stderr, color.New(color.FgRed).Sprintf("error: %s", err))
		}
		logger.Sync()
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		fmt.Fprintln(os.Stderr, color.New(color.FgRed).Sprintf("error: %s", err))
		os.Exit(1)
	}
}
