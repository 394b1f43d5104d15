// Package handlers exposes the gateway's REST contract over gin:
//
//	POST   /v1/anonymous/register
//	POST   /v1/auth/refresh
//	POST   /v1/images/upload-url
//	GET    /v1/images/:id?w=
//	DELETE /v1/images/:id
//
// plus /healthz, an optional /metrics endpoint and, for in-memory object
// storage, the PUT target of presigned upload URLs. Failures are answered
// with the envelope {"ok":false,"error":"<code>","message":"..."}.
package handlers
