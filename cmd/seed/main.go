// Command main runs the database seeder for Agora.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"agora/internal/config"
	"agora/internal/seed"
	"agora/internal/store"
)

func main() {
	numUsers := flag.Int("users", 25, "Number of users to create")
	numThreads := flag.Int("threads", 60, "Number of threads to create")
	maxDays := flag.Int("max-days", 90, "Spread created_at over this many days")
	shouldClean := flag.Bool("clean", true, "Clean database before seeding")
	randSeed := flag.Int64("seed", 0, "Pin the random seed for reproducible runs (0 = random)")
	flag.Parse()

	log.Println("🌱 Database Seeder")
	log.Println("==================")
	log.Printf("Target: %d users, %d threads, clean=%v\n", *numUsers, *numThreads, *shouldClean)

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	client, db, err := store.Connect(ctx, cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer func() { _ = store.Disconnect(context.Background(), client) }()

	opts := seed.Options{
		NumUsers:    *numUsers,
		NumThreads:  *numThreads,
		MaxDays:     *maxDays,
		ShouldClean: *shouldClean,
		RandSeed:    *randSeed,
	}
	s := seed.NewSeeder(db, opts)

	if opts.ShouldClean {
		if err := s.ClearAll(ctx); err != nil {
			log.Fatalf("❌ Cleanup failed: %v", err)
		}
	}

	if err := s.Seed(ctx, opts); err != nil {
		log.Fatalf("❌ Seeding failed: %v", err)
	}
}
