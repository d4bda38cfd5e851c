package logger

import (
	"fmt"
	"io"
	"os"
	"path"
	"runtime"
	"strings"

	formatter "github.com/antonfisher/nested-logrus-formatter"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Fields = logrus.Fields

type Options struct {
	Level   string    // logrus level name, "info" when empty
	File    string    // rotating log file, none when empty
	Output  io.Writer // console writer, os.Stderr when nil
	NoColor bool
	Caller  bool
}

// New builds a logger writing to the console and, when File is set, to a
// rotating log file.
func New(opts Options) (*logrus.Logger, error) {
	level := logrus.InfoLevel
	if opts.Level != "" {
		var err error
		level, err = logrus.ParseLevel(opts.Level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", opts.Level, err)
		}
	}

	log := logrus.New()
	log.SetLevel(level)
	log.SetFormatter(&formatter.Formatter{
		NoColors:        opts.NoColor,
		TimestampFormat: "02 Jan 06 - 15:04:05",
		HideKeys:        false,
		CallerFirst:     true,
		CustomCallerFormatter: func(f *runtime.Frame) string {
			s := strings.Split(f.Function, ".")
			funcName := s[len(s)-1]
			return fmt.Sprintf(" [%s:%d][%s()]", path.Base(f.File), f.Line, funcName)
		},
	})
	log.SetReportCaller(opts.Caller)

	console := opts.Output
	if console == nil {
		console = os.Stderr
	}
	writers := []io.Writer{console}

	if opts.File != "" {
		writers = append(writers, &lumberjack.Logger{
			Filename:   opts.File,
			LocalTime:  true,
			Compress:   true,
			MaxSize:    10,
			MaxAge:     7,
			MaxBackups: 3,
		})
	}

	log.SetOutput(io.MultiWriter(writers...))
	return log, nil
}
