package main

import (
	"context"

	"github.com/asdine/storm/v3"
	"github.com/mdouchement/playerdata/internal/config"
	"github.com/mdouchement/playerdata/internal/database"
	"github.com/mdouchement/playerdata/internal/storage"
	"github.com/ncw/swift/v2"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/mongo"
)

// resources holds the connections shared by all the requests.
type resources struct {
	storm *storm.DB
	mongo *mongo.Client
	swift *swift.Connection
}

// open opens the connections required by cfg.
func open(ctx context.Context, cfg *config.Config) (*resources, error) {
	r := &resources{}

	if cfg.UseStorm() {
		db, err := database.StormOpen(cfg.Database.Path)
		if err != nil {
			return nil, errors.Wrap(err, "could not open database")
		}
		r.storm = db
	}

	if cfg.UseMongo() {
		client, err := database.MongoConnect(ctx, cfg.Database.MongoURI, cfg.Database.Timeout)
		if err != nil {
			r.Close()
			return nil, err
		}
		r.mongo = client
	}

	if cfg.Storage.Driver == config.DriverSwift {
		r.swift = &swift.Connection{
			UserName: cfg.Storage.Swift.Username,
			ApiKey:   cfg.Storage.Swift.APIKey,
			AuthUrl:  cfg.Storage.Swift.AuthURL,
			Domain:   cfg.Storage.Swift.Domain,
			Tenant:   cfg.Storage.Swift.Tenant,
			Region:   cfg.Storage.Swift.Region,
			Timeout:  cfg.Database.Timeout,
		}

		if err := r.swift.Authenticate(ctx); err != nil {
			r.Close()
			return nil, errors.Wrap(err, "could not authenticate to swift")
		}
	}

	return r, nil
}

// Init creates the buckets, indexes and containers.
func (r *resources) Init(ctx context.Context, cfg *config.Config) error {
	if r.storm != nil {
		if err := database.StormInit(r.storm); err != nil {
			return err
		}
		if err := storage.StormInit(r.storm, cfg.Sprites(), cfg.Audio()); err != nil {
			return err
		}
	}

	if r.mongo != nil && cfg.Database.Driver == config.DriverMongo {
		if err := database.MongoInit(ctx, r.mongo.Database(cfg.Database.MongoDatabase)); err != nil {
			return err
		}
	}

	if r.swift != nil {
		if err := storage.SwiftInit(ctx, r.swift, cfg.Sprites(), cfg.Audio()); err != nil {
			return err
		}
	}
	return nil
}

// Database returns the score store selected by cfg.
func (r *resources) Database(cfg *config.Config) database.Client {
	if cfg.Database.Driver == config.DriverMongo {
		return database.NewMongo(r.mongo.Database(cfg.Database.MongoDatabase))
	}
	return database.NewStorm(r.storm)
}

// Backends returns the sprites and audio blob stores selected by cfg.
func (r *resources) Backends(cfg *config.Config) (sprites, audio storage.Backend) {
	switch cfg.Storage.Driver {
	case config.DriverGridFS:
		db := r.mongo.Database(cfg.Database.MongoDatabase)
		return storage.NewGridFS(db, cfg.Sprites()), storage.NewGridFS(db, cfg.Audio())
	case config.DriverSwift:
		return storage.NewSwift(r.swift, cfg.Sprites(), cfg.Storage.GracePeriod),
			storage.NewSwift(r.swift, cfg.Audio(), cfg.Storage.GracePeriod)
	default:
		return storage.NewStorm(r.storm, cfg.Sprites(), cfg.Storage.GracePeriod),
			storage.NewStorm(r.storm, cfg.Audio(), cfg.Storage.GracePeriod)
	}
}

// Close releases all the connections.
func (r *resources) Close() {
	if r.storm != nil {
		r.storm.Close()
	}
	if r.mongo != nil {
		r.mongo.Disconnect(context.Background())
	}
	if r.swift != nil {
		r.swift.UnAuthenticate()
	}
}
