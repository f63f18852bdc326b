// Skyrank - Personalized Flight Offer Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/skyrank

/*
Package supervisor provides process supervision for Skyrank using suture v4.

The tree groups long-running services into layers so a crash in one layer is
restarted without touching the others:

	RootSupervisor ("skyrank")
	├── DataSupervisor ("data-layer")
	│   └── ProfileRefreshService (if profiles.refresh_interval > 0)
	├── TrainingSupervisor ("training-layer")
	│   └── TrainingSchedulerService (if training.enabled)
	└── APISupervisor ("api-layer")
	    └── HTTPServerService

A failing training run never takes the HTTP server down; ranking keeps using
the last active artifact.

Supervisor events (start, failure, backoff) are logged through sutureslog
into the same zerolog output as the rest of the service.

Usage in main.go:

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{
	    ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})
	tree.AddTrainingService(services.NewTrainingSchedulerService(pipeline, engine, schedCfg, logger))
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout, logger))
	errCh := tree.ServeBackground(ctx)

See the services subpackage for the service wrappers.
*/
package supervisor
