/*
 * HUNKVM - Main process.
 *
 * Copyright 2025, Thomas Krause
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

package main

import (
	"log/slog"
	"os"

	getopt "github.com/pborman/getopt/v2"

	config "github.com/tkrause/hunkvm/config/configparser"
	execute "github.com/tkrause/hunkvm/emu/execute"
	libload "github.com/tkrause/hunkvm/emu/libload"
	loader "github.com/tkrause/hunkvm/emu/loader"
	logger "github.com/tkrause/hunkvm/util/logger"

	_ "github.com/tkrause/hunkvm/libs/doslib"
	_ "github.com/tkrause/hunkvm/libs/execlib"
)

func main() {
	optConfig := getopt.StringLong("config", 'c', "", "Configuration file")
	optLogFile := getopt.StringLong("log", 'l', "", "Log file")
	optTrace := getopt.BoolLong("trace", 't', "Single-step the guest with register dumps")
	optMonitor := getopt.BoolLong("monitor", 'm', "Start the interactive debug monitor")
	optHelp := getopt.BoolLong("help", 'h', "Help")
	getopt.SetParameters("program")
	getopt.Parse()

	if *optHelp {
		getopt.Usage()
		os.Exit(0)
	}
	args := getopt.Args()
	if len(args) != 1 {
		getopt.Usage()
		os.Exit(1)
	}

	cfg := config.Default()
	if *optConfig != "" {
		var err error
		cfg, err = config.Load(*optConfig)
		if err != nil {
			slog.Error("could not load configuration: " + err.Error())
			os.Exit(1)
		}
	}
	if *optLogFile != "" {
		cfg.LogFile = *optLogFile
	}
	if *optTrace {
		cfg.Trace = true
	}

	var file *os.File
	if cfg.LogFile != "" {
		var err error
		file, err = os.Create(cfg.LogFile)
		if err != nil {
			slog.Error("could not create log file: " + err.Error())
			os.Exit(1)
		}
	}
	programLevel := new(slog.LevelVar)
	programLevel.Set(slog.LevelDebug)
	log := slog.New(logger.NewHandler(file,
		&slog.HandlerOptions{Level: programLevel}, cfg.Trace))
	slog.SetDefault(log)

	libload.SetLibDir(cfg.LibDir)

	log.Info("loading program " + args[0])
	prog, err := loader.Load(args[0])
	if err != nil {
		log.Error("loader: " + err.Error())
		os.Exit(1)
	}

	log.Info("executing program")
	err = execute.Run(prog, execute.Options{
		CacheSize: cfg.CacheSize,
		Trace:     cfg.Trace,
		Monitor:   *optMonitor,
	})
	if err != nil {
		log.Error("execute: " + err.Error())
		os.Exit(1)
	}
}
