package services

import "whoisgate/internal/registry"

// registerContract wires every third-party-API-backed handler: these
// talk to a single upstream service and format a small, honest subset
// of its response rather than mapping every field, per this package's
// doc comment.
func (d *Deps) registerContract(reg *registry.Registry) {
	d.registerMinecraft(reg)
	d.registerSteam(reg)
	d.registerImdb(reg, d.OMDbAPIKey)
	d.registerGithub(reg)
	d.registerWikipedia(reg)
	d.registerACGC(reg)
	d.registerLyric(reg)
	d.registerMeal(reg)
	d.registerPixiv(reg)
	d.registerPEN(reg)
	d.registerICP(reg)
	d.registerCFStatus(reg)
	d.registerPeeringDB(reg)
	d.registerRDAP(reg)
	d.registerDesc(reg)
	d.registerEmail(reg)
}
