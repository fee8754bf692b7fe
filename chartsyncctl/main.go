package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/docopt/docopt-go"

	"github.com/chartfeed/chartsync"
	"github.com/chartfeed/chartsync/feed"
)

const ChartSyncCtlVersion = "0.0.1"

var Out *log.Logger
var Err *log.Logger

func init() {
	Out = log.New(os.Stdout, "", 0)
	Err = log.New(os.Stderr, "", log.Ldate|log.Ltime|log.Lshortfile)
}

func main() {
	usage := `Chart sync control.

Usage:
    chartsyncctl client-id --jwt=<jwt>
    chartsyncctl watch <url> --jwt=<jwt>
        [--timeout=<timeout>]
        [--width=<width>] [--height=<height>]

Options:
    -h --help            Show this screen.
    --version            Show version.
    --jwt=<jwt>          Your feed JWT.
    --timeout=<timeout>  Watch for this many seconds then exit.
    --width=<width>      Reported layout rect width [default: 800].
    --height=<height>    Reported layout rect height [default: 600].`

	opts, err := docopt.ParseArgs(usage, os.Args[1:], ChartSyncCtlVersion)
	if err != nil {
		panic(err)
	}

	if clientId_, _ := opts.Bool("client-id"); clientId_ {
		clientId(opts)
	} else if watch_, _ := opts.Bool("watch"); watch_ {
		watch(opts)
	}
}

func clientId(opts docopt.Opts) {
	jwt, err := opts.String("--jwt")
	if err != nil {
		panic(err)
	}
	auth := &feed.ClientAuth{
		ByJwt: jwt,
	}
	clientId, err := auth.ClientId()
	if err != nil {
		panic(err)
	}
	Out.Printf("%s\n", clientId)
}

func watch(opts docopt.Opts) {
	cancelCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	url, err := opts.String("<url>")
	if err != nil {
		panic(err)
	}
	jwt, err := opts.String("--jwt")
	if err != nil {
		panic(err)
	}

	auth := &feed.ClientAuth{
		ByJwt:      jwt,
		InstanceId: chartsync.NewId(),
		AppVersion: ChartSyncCtlVersion,
	}
	client, err := feed.NewFeedClientWithDefaults(cancelCtx, url, auth)
	if err != nil {
		panic(err)
	}
	defer client.Cancel()

	settings := chartsync.DefaultChartModelSettings()
	settings.Unwrap = feed.UnwrapCell
	model := chartsync.NewChartModel(cancelCtx, client, chartsync.DefaultTheme(), settings)
	defer model.Cancel()

	if width, err := opts.Float64("--width"); err == nil {
		height, _ := opts.Float64("--height")
		model.SetRect(width, height)
	}

	unsub, err := model.Subscribe(func(event *chartsync.ChartEvent) {
		for i, trace := range event.Data {
			points := 0
			if x, ok := trace.Field("x"); ok {
				points = x.Len()
			}
			Out.Printf("trace[%d] %d points\n", i, points)
		}
	})
	if err != nil {
		panic(err)
	}
	defer unsub()

	Out.Printf("watching %s (plot %gx%g)\n", url, model.PlotWidth(), model.PlotHeight())

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, syscall.SIGINT, syscall.SIGTERM)

	if timeoutSeconds, err := opts.Int("--timeout"); err == nil && 0 < timeoutSeconds {
		select {
		case <-interrupt:
		case <-time.After(time.Duration(timeoutSeconds) * time.Second):
		}
	} else {
		<-interrupt
	}
}
