/******************************************************************************
 *
 *  Description :
 *
 *  Setup & initialization.
 *
 *****************************************************************************/

package main

import (
	"encoding/json"
	"flag"
	"net/http"
	"os"
	"runtime"

	"github.com/gorilla/handlers"
	jcr "github.com/tinode/jsonco"

	"github.com/seednode/pod/server/concurrency"
	_ "github.com/seednode/pod/server/db/mem"
	_ "github.com/seednode/pod/server/db/mysql"
	_ "github.com/seednode/pod/server/db/postgres"
	"github.com/seednode/pod/server/discovery"
	_ "github.com/seednode/pod/server/discovery/webfinger"
	"github.com/seednode/pod/server/logs"
	"github.com/seednode/pod/server/push"
	_ "github.com/seednode/pod/server/push/amqp"
	_ "github.com/seednode/pod/server/push/stdout"
	"github.com/seednode/pod/server/store"
)

// currentVersion is the version of the server reported to monitoring.
const currentVersion = "0.1.0"

const defaultWorkers = 16

var globals struct {
	rcv *Receiver
	// Pool for background work: profile refreshes, disconnect sweeps.
	workers *concurrency.GoRoutinePool
	// Channel for stats updates, see stats.go.
	statsUpdate chan *varUpdate
}

type configType struct {
	// Address:port to listen on.
	Listen string `json:"listen"`
	// Path for exposing runtime stats, disabled if empty or "-".
	ExpvarPath string `json:"expvar"`
	// Path for exposing prometheus metrics, disabled if empty or "-".
	MetricsPath string `json:"prom_metrics"`
	// Path for exposing runtime profiles, disabled if empty or "-".
	PprofPath string `json:"pprof_url"`
	// Worker ID for the unique ID generator, 0-1023.
	WorkerID int `json:"worker_id"`
	// Number of background worker goroutines.
	Workers int `json:"workers"`
	// Configuration of the storage layer, passed to store.Open.
	StoreConfig json.RawMessage `json:"store_config"`
	// Configuration of notification sinks, passed to push.Init.
	PushConfig json.RawMessage `json:"push"`
	// Configuration of the discovery backend, passed to discovery.Init.
	DiscoveryConfig json.RawMessage `json:"discovery"`
}

func main() {
	logs.Init()

	logs.Info.Printf("Server v%s pid=%d started with processes: %d", currentVersion,
		os.Getpid(), runtime.GOMAXPROCS(runtime.NumCPU()))

	var configfile = flag.String("config", "./pod.conf", "Path to config file.")
	var listenOn = flag.String("listen", "", "Override address and port to listen on.")
	var initDb = flag.Bool("init_db", false, "Initialize the database schema and exit.")
	var reset = flag.Bool("reset_db", false, "Drop the database before initializing.")
	flag.Parse()

	logs.Info.Printf("Using config from '%s'", *configfile)

	var config configType
	if file, err := os.Open(*configfile); err != nil {
		logs.Error.Fatalln("Failed to read config file:", err)
	} else {
		jr := jcr.New(file)
		if err = json.NewDecoder(jr).Decode(&config); err != nil {
			switch jerr := err.(type) {
			case *json.UnmarshalTypeError:
				lnum, cnum, _ := jr.LineAndChar(jerr.Offset)
				logs.Error.Fatalf("Unmarshall error in config file in %s at %d:%d (offset %d bytes): %s",
					jerr.Field, lnum, cnum, jerr.Offset, jerr.Error())
			case *json.SyntaxError:
				lnum, cnum, _ := jr.LineAndChar(jerr.Offset)
				logs.Error.Fatalf("Syntax error in config file at %d:%d (offset %d bytes): %s",
					lnum, cnum, jerr.Offset, jerr.Error())
			default:
				logs.Error.Fatalln("Failed to parse config file:", err)
			}
		}
		file.Close()
	}

	if *listenOn != "" {
		config.Listen = *listenOn
	}
	if config.Listen == "" {
		config.Listen = ":6060"
	}

	if err := store.Open(config.WorkerID, config.StoreConfig); err != nil {
		logs.Error.Fatalln("Failed to connect to storage:", err)
	}
	defer func() {
		store.Close()
		logs.Info.Println("Closed database connection(s)")
	}()
	logs.Info.Println("Storage adapter:", store.GetAdapterName())

	if *initDb {
		if err := store.InitDb(config.StoreConfig, *reset); err != nil {
			logs.Error.Fatalln("Failed to initialize database:", err)
		}
		logs.Info.Println("Database initialized")
		return
	}

	if enabled, err := push.Init(config.PushConfig); err != nil {
		logs.Error.Fatalln("Failed to initialize push notifications:", err)
	} else {
		logs.Info.Println("Notification sinks:", enabled)
	}
	defer func() {
		push.Stop()
		logs.Info.Println("Stopped notification sinks")
	}()

	disco, err := discovery.Init(config.DiscoveryConfig)
	if err != nil {
		logs.Error.Fatalln("Failed to initialize discovery:", err)
	}

	if config.Workers <= 0 {
		config.Workers = defaultWorkers
	}
	globals.workers = concurrency.NewGoRoutinePool(config.Workers)
	defer globals.workers.Stop()

	globals.rcv = NewReceiver(newResolver(disco))

	mux := http.NewServeMux()
	mux.HandleFunc("/receive/users/", serveReceive)
	statsInit(mux, config.ExpvarPath, config.MetricsPath)
	defer statsShutdown()
	servePprof(mux, config.PprofPath)

	logs.Info.Printf("Listening on [%s]", config.Listen)
	handler := handlers.CombinedLoggingHandler(os.Stdout, mux)
	if err := listenAndServe(config.Listen, handler, signalHandler()); err != nil {
		logs.Error.Fatalln(err)
	}
}
