// Package secret resolves credentials referenced from configuration.
//
// Configuration values such as the upstream API token or the Redis
// password may be given literally, with strict ${ENV} expansion, or as a
// reference resolved by a registered Provider:
//
//	DASHQUERY_API_TOKEN=secretref:file:api-token
//	DASHQUERY_REDIS_PASSWORD=secretref:env:REDIS_PASSWORD
//
// References may also appear inline ("Bearer secretref:file:api-token").
// Resolved values are never logged.
package secret
