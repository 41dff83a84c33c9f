package main

import (
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/bluenviron/gocamstream/internal/conf"
	"github.com/bluenviron/gocamstream/internal/logger"
)

func getConfig(c *cli.Context) (*conf.Conf, *zap.Logger, error) {
	confString, err := conf.GetConfString(c.String("config"), c.String("config-body"))
	if err != nil {
		return nil, nil, err
	}

	strictMode := true
	if c.Bool("disable-strict-config") {
		strictMode = false
	}

	cnf, err := conf.NewConf(confString, strictMode, c)
	if err != nil {
		return nil, nil, err
	}

	l, err := logger.New(cnf.LogLevel, cnf.LogJSON)
	if err != nil {
		return nil, nil, err
	}

	return cnf, l, nil
}
