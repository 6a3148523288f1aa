package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/milk9111/robosim/ecs"
	"github.com/milk9111/robosim/prefabs"
	"github.com/milk9111/robosim/server"
	"github.com/milk9111/robosim/sim"
)

func main() {
	worldName := flag.String("world", prefabs.DefaultWorld, "world prefab (worlds/<name>.yaml)")
	robotName := flag.String("robot", prefabs.DefaultRobot, "robot prefab (robots/<name>.yaml)")
	players := flag.Int("players", 0, "arena seats to fill; 0 runs a single robot")
	program := flag.String("program", "", "program to run on every robot: a scripts/ prefab or a file path")
	lang := flag.String("lang", "", "program language (tengo or arduino); defaults to the file extension")
	serve := flag.String("serve", "", "serve the HTTP API and telemetry on this address, e.g. :8080")
	duration := flag.Duration("duration", 0, "stop after this much wall time; 0 runs until the program ends or interrupt")
	watch := flag.Bool("watch", false, "rerun the program when its file changes on disk")
	prefabDir := flag.String("prefabs", prefabs.Dir, "on-disk prefab directory overriding the embedded copies")
	flag.Parse()

	prefabs.Dir = *prefabDir

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if *duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *duration)
		defer cancel()
	}

	s, err := sim.NewFromPrefab(*worldName, sim.Options{
		OnEvent: func(evt ecs.Event) {
			log.Printf("event: %s", evt)
		},
		Output: func(e ecs.Entity, line string) {
			log.Printf("robot %s: %s", e, line)
		},
	})
	if err != nil {
		log.Fatal(err)
	}
	defer s.Close()

	robots, err := s.AddRobots(*robotName, *players)
	if err != nil {
		log.Fatal(err)
	}

	go func() {
		if err := s.Run(ctx); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			log.Printf("sim: %v", err)
		}
	}()

	if *serve != "" {
		srv := server.New(s, server.Options{})
		go func() {
			if err := srv.Run(ctx, *serve); err != nil && ctx.Err() == nil {
				log.Printf("server: %v", err)
				stop()
			}
		}()
	}

	if *program != "" {
		runAll(s, robots, *program, *lang)
		if *watch {
			go watchProgram(ctx, s, robots, *program, *lang)
		}
	}

	// a lone program run ends the process when it finishes
	if *program != "" && *serve == "" && *duration == 0 && !*watch {
		for _, e := range robots {
			_ = s.Wait(ctx, e)
		}
	} else {
		<-ctx.Done()
	}

	s.StopAll()
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s.Snapshot()); err != nil {
		log.Printf("encode snapshot: %v", err)
	}
}

func loadProgram(name, lang string) ([]byte, string, error) {
	if lang == "" {
		lang = prefabs.ProgramLang(name)
	}
	if data, err := os.ReadFile(name); err == nil {
		return data, lang, nil
	}
	data, err := prefabs.LoadScript(name)
	return data, lang, err
}

func runAll(s *sim.Simulation, robots []ecs.Entity, name, lang string) {
	src, lang, err := loadProgram(name, lang)
	if err != nil {
		log.Printf("program %s: %v", name, err)
		return
	}
	for _, e := range robots {
		if _, err := s.RunProgram(e, lang, src); err != nil {
			log.Printf("program %s on robot %s: %v", name, e, err)
		}
	}
}

func watchProgram(ctx context.Context, s *sim.Simulation, robots []ecs.Entity, name, lang string) {
	w, err := prefabs.NewWatcher()
	if err != nil {
		log.Printf("watch: %v", err)
		return
	}
	defer w.Close()

	want := prefabs.ScriptName(name)
	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			log.Printf("watch: %v", err)
		case changed, ok := <-w.Events:
			if !ok {
				return
			}
			if prefabs.ProgramLang(changed) == "" {
				log.Printf("watch: %s changed; restart to apply", changed)
				continue
			}
			if prefabs.ScriptName(changed) != want {
				continue
			}
			log.Printf("watch: %s changed, rerunning", changed)
			// let the editor finish writing
			time.Sleep(50 * time.Millisecond)
			s.Reset()
			runAll(s, robots, name, lang)
		}
	}
}
