package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/julianstephens/studylit/internal/config"
	"github.com/julianstephens/studylit/internal/service"
	"github.com/julianstephens/studylit/internal/utils"
)

type InitCmd struct{}

func (c *InitCmd) Run(ctx *Context) error {
	path, err := service.Initialize(ctx.Ctx(), ctx.Config)
	if err != nil {
		return err
	}
	ctx.printf("Initialized studylit storage at: %s\n", path)

	if ctx.ConfigPath == "" {
		return nil
	}
	cfgPath, err := utils.ExpandHome(ctx.ConfigPath)
	if err != nil {
		return err
	}
	if _, err := os.Stat(cfgPath); err == nil {
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to access config file: %w", err)
	}
	if err := config.Save(cfgPath, ctx.Config); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	ctx.printf("Wrote default config to: %s\n", cfgPath)
	return nil
}
