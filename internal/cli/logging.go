package cli

import (
	"io"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/roach88/kotars/internal/boundary"
	"github.com/roach88/kotars/internal/codec"
	"github.com/roach88/kotars/internal/config"
	"github.com/roach88/kotars/internal/expand"
	"github.com/roach88/kotars/internal/extract"
	"github.com/roach88/kotars/internal/glue"
	"github.com/roach88/kotars/internal/marshal"
	"github.com/roach88/kotars/internal/pipeline"
	"github.com/roach88/kotars/internal/render"
)

// newLogger returns a console logger writing to w: debug level when
// verbose, warnings and above otherwise.
func newLogger(verbose bool, w io.Writer) *zap.Logger {
	level := zapcore.WarnLevel
	encCfg := zap.NewProductionEncoderConfig()
	if verbose {
		level = zapcore.DebugLevel
		encCfg = zap.NewDevelopmentEncoderConfig()
	}
	encCfg.TimeKey = ""
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.AddSync(w), level)
	return zap.New(core)
}

func setupLogging(verbose bool, w io.Writer) {
	l := newLogger(verbose, w)
	config.SetLogger(l.Named("config"))
	extract.SetLogger(l.Named("extract"))
	marshal.SetLogger(l.Named("marshal"))
	glue.SetLogger(l.Named("glue"))
	expand.SetLogger(l.Named("expand"))
	codec.SetLogger(l.Named("codec"))
	render.SetLogger(l.Named("render"))
	pipeline.SetLogger(l.Named("pipeline"))
	boundary.SetLogger(l.Named("boundary"))
}
