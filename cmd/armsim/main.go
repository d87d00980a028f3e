/*
 * cortexm - Example driver command.
 *
 * Copyright 2024, Richard Cornwell
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in
 * all copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 */

// Command armsim is the minimal bring-up surface the driver package
// exercises from the console: load a flat code image plus an optional
// boot descriptor, then drop into the interactive monitor. It is not
// the GDB/CLI front end spec.md's scope excludes -- that remains an
// external collaborator talking to driver.Driver directly.
package main

import (
	"io"
	"log/slog"
	"os"

	getopt "github.com/pborman/getopt/v2"

	"github.com/cmsim/cortexm/config/bootconfig"
	"github.com/cmsim/cortexm/emu/driver"
	"github.com/cmsim/cortexm/monitor"
	logger "github.com/cmsim/cortexm/util/logger"
)

func main() {
	optImage := getopt.StringLong("image", 'i', "", "Flat code image to load")
	optConfig := getopt.StringLong("config", 'c', "", "Boot descriptor file")
	optLogFile := getopt.StringLong("log", 'l', "", "Log file")
	optDebug := getopt.BoolLong("debug", 'd', "Enable trace logging")
	optHelp := getopt.BoolLong("help", 'h', "Help")
	getopt.Parse()

	if *optHelp {
		getopt.Usage()
		os.Exit(0)
	}

	var logWriter io.Writer
	if *optLogFile != "" {
		logFile, err := os.Create(*optLogFile)
		if err != nil {
			slog.Error("create log file", "path", *optLogFile, "error", err)
			os.Exit(1)
		}
		logWriter = logFile
	}
	programLevel := new(slog.LevelVar)
	programLevel.Set(slog.LevelInfo)
	if *optDebug {
		programLevel.Set(slog.LevelDebug)
	}
	handler := logger.NewHandler(logWriter, &slog.HandlerOptions{Level: programLevel}, optDebug)
	slog.SetDefault(slog.New(handler))

	if *optImage == "" {
		slog.Error("please specify a code image with -i")
		os.Exit(1)
	}
	image, err := os.ReadFile(*optImage)
	if err != nil {
		slog.Error("read image", "path", *optImage, "error", err)
		os.Exit(1)
	}

	var desc bootconfig.Descriptor
	if *optConfig != "" {
		desc, err = bootconfig.Load(*optConfig)
		if err != nil {
			slog.Error("load boot descriptor", "path", *optConfig, "error", err)
			os.Exit(1)
		}
	}

	cfg := driver.Config{
		CodeImage:       image,
		FlashBase:       desc.FlashBase,
		FlashSize:       desc.FlashSize,
		SRAMBase:        desc.SRAMBase,
		SRAMSize:        desc.SRAMSize,
		VectorTableBase: desc.VectorTableBase,
		Variant:         variantFromName(desc.Variant),
		PriorityBits:    uint(desc.PriorityBits),
		AllowSelfModify: desc.AllowSelfModify,
		RemapFrom:       desc.RemapFrom,
		RemapTo:         desc.RemapTo,
		RemapLength:     desc.RemapLength,
		Trace:           desc.Trace || *optDebug,
	}

	d, err := driver.New(cfg)
	if err != nil {
		slog.Error("start driver", "error", err)
		os.Exit(1)
	}

	slog.Info("armsim started", "image", *optImage)
	monitor.Run(d)
	slog.Info("armsim exiting", "code", d.ExitCode())
}

func variantFromName(name string) driver.ArchVariant {
	switch name {
	case "armv6m":
		return driver.ArchV6M
	case "armv7em":
		return driver.ArchV7EM
	default:
		return driver.ArchV7M
	}
}
