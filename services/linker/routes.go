// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package linker

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers the linker endpoints with the router.
//
// Description:
//
//	Registers the legacy /link endpoint at the root and the /v1 API. The
//	router should already have any required middleware applied.
//
// Endpoints:
//
//	GET  /link?ne= - Resolve one mention (legacy path)
//	GET  /v1/link?ne= - Resolve one mention
//	POST /v1/link/batch - Resolve many mentions
//	GET  /v1/link/stream - Resolve mentions over a WebSocket
//	POST /v1/similarity - Compare two strings with every metric
//	GET  /v1/health - Health check
//
// Example:
//
//	handlers := linker.NewHandlers(resolver, resolver.Backend(), cfg.Server.MaxBatchSize)
//	linker.RegisterRoutes(router, handlers)
func RegisterRoutes(router gin.IRouter, handlers *Handlers) {
	router.GET("/link", handlers.HandleLink)

	v1 := router.Group("/v1")
	{
		link := v1.Group("/link")
		{
			link.GET("", handlers.HandleLink)
			link.POST("/batch", handlers.HandleBatch)
			link.GET("/stream", handlers.HandleStream)
		}

		v1.POST("/similarity", handlers.HandleSimilarity)
		v1.GET("/health", handlers.HandleHealth)
	}
}
