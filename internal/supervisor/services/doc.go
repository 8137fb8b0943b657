// CRMRec - CRM Product Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crmrec

/*
Package services provides suture.Service wrappers for crmrec components.

Each wrapper translates a component lifecycle into suture's context-aware
Serve pattern:

  - HTTPServerService: ListenAndServe with graceful Shutdown
  - RecommendService: startup, scheduled and event-driven model training
  - EventBusService: closes the Watermill bus when the tree stops

Wrappers implement fmt.Stringer so suture logs name them.
*/
package services
