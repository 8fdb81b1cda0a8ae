package catalog

import "github.com/boddenberg/estimator-bff-go/internal/domain"

// System materials shipped with the product, grouped by trade.
var systemItems = map[domain.Trade][]item{
	domain.TradeHVAC: {
		{"Copper Tubing 3/8\"", "ft", 3.25},
		{"Copper Tubing 1/2\"", "ft", 4.5},
		{"Copper Tubing 3/4\"", "ft", 6.75},
		{"Copper Tubing 1\"", "ft", 9},
		{"Refrigerant R410A", "lb", 45},
		{"Refrigerant R22", "lb", 85},
		{"Condensing Unit 2 Ton", "each", 2200},
		{"Condensing Unit 3 Ton", "each", 2800},
		{"Condensing Unit 4 Ton", "each", 3400},
		{"Condensing Unit 5 Ton", "each", 4200},
		{"Air Handler 2 Ton", "each", 1800},
		{"Air Handler 3 Ton", "each", 2200},
		{"Air Handler 4 Ton", "each", 2600},
		{"Air Handler 5 Ton", "each", 3200},
		{"Programmable Thermostat", "each", 125},
		{"Smart Thermostat", "each", 275},
		{"Ductwork - Flex 6\"", "ft", 4.5},
		{"Ductwork - Flex 8\"", "ft", 6},
		{"Ductwork - Flex 10\"", "ft", 7.5},
		{"Ductwork - Sheet Metal", "ft", 12},
		{"Supply Register 6x10", "each", 18},
		{"Return Grille 20x20", "each", 35},
		{"Air Filter 20x20x1", "each", 8},
		{"Condensate Pump", "each", 85},
		{"Drain Pan", "each", 45},
		{"Line Set 25ft", "each", 175},
		{"Line Set 50ft", "each", 325},
		{"Disconnect Box", "each", 65},
		{"Condenser Pad", "each", 45},
		{"Mini Split 12000 BTU", "each", 1200},
		{"Mini Split 18000 BTU", "each", 1600},
		{"Mini Split 24000 BTU", "each", 2000},
	},
	domain.TradePlumbing: {
		{"PVC Pipe 1/2\"", "ft", 0.75},
		{"PVC Pipe 3/4\"", "ft", 1},
		{"PVC Pipe 1\"", "ft", 1.5},
		{"PVC Pipe 2\"", "ft", 2.5},
		{"PVC Pipe 3\"", "ft", 4},
		{"PVC Pipe 4\"", "ft", 6},
		{"Copper Pipe 1/2\"", "ft", 4.5},
		{"Copper Pipe 3/4\"", "ft", 6.75},
		{"Copper Pipe 1\"", "ft", 9.5},
		{"PEX Pipe 1/2\"", "ft", 0.85},
		{"PEX Pipe 3/4\"", "ft", 1.25},
		{"PEX Pipe 1\"", "ft", 2},
		{"Water Heater 40 Gal Gas", "each", 850},
		{"Water Heater 50 Gal Gas", "each", 950},
		{"Water Heater 40 Gal Electric", "each", 650},
		{"Water Heater 50 Gal Electric", "each", 750},
		{"Tankless Water Heater Gas", "each", 1800},
		{"Tankless Water Heater Electric", "each", 1200},
		{"Toilet Standard", "each", 225},
		{"Toilet High Efficiency", "each", 375},
		{"Kitchen Faucet Standard", "each", 125},
		{"Kitchen Faucet Premium", "each", 275},
		{"Bathroom Faucet", "each", 85},
		{"Shut-off Valve 1/2\"", "each", 12},
		{"Shut-off Valve 3/4\"", "each", 18},
		{"Ball Valve 1/2\"", "each", 15},
		{"Ball Valve 3/4\"", "each", 22},
		{"Garbage Disposal 1/2 HP", "each", 175},
		{"Garbage Disposal 3/4 HP", "each", 275},
		{"Sump Pump 1/3 HP", "each", 185},
		{"Sump Pump 1/2 HP", "each", 275},
		{"Kitchen Sink Stainless", "each", 225},
		{"Bathroom Sink", "each", 125},
		{"Shower Valve", "each", 185},
		{"Bathtub Drain Assembly", "each", 65},
		{"P-Trap", "each", 12},
		{"Wax Ring", "each", 8},
		{"Supply Line Braided", "each", 12},
	},
	domain.TradeElectrical: {
		{"Romex 14/2", "ft", 0.65},
		{"Romex 12/2", "ft", 0.85},
		{"Romex 10/2", "ft", 1.25},
		{"Romex 10/3", "ft", 1.75},
		{"Romex 8/3", "ft", 2.5},
		{"Romex 6/3", "ft", 3.5},
		{"THHN Wire 12 AWG", "ft", 0.35},
		{"THHN Wire 10 AWG", "ft", 0.55},
		{"THHN Wire 8 AWG", "ft", 0.85},
		{"EMT Conduit 1/2\"", "ft", 1.25},
		{"EMT Conduit 3/4\"", "ft", 1.75},
		{"EMT Conduit 1\"", "ft", 2.5},
		{"Duplex Outlet 15A", "each", 3.5},
		{"Duplex Outlet 20A", "each", 5},
		{"GFCI Outlet 15A", "each", 18},
		{"GFCI Outlet 20A", "each", 22},
		{"USB Outlet", "each", 25},
		{"Single Pole Switch", "each", 3},
		{"3-Way Switch", "each", 5.5},
		{"Dimmer Switch", "each", 18},
		{"Smart Switch", "each", 45},
		{"Breaker 15A", "each", 8},
		{"Breaker 20A", "each", 10},
		{"Breaker 30A", "each", 15},
		{"Breaker 50A", "each", 25},
		{"GFCI Breaker 15A", "each", 45},
		{"AFCI Breaker 15A", "each", 48},
		{"Panel 100A", "each", 275},
		{"Panel 200A", "each", 450},
		{"Panel Upgrade 200A", "each", 850},
		{"Ceiling Light Fixture", "each", 45},
		{"Recessed Light 6\"", "each", 35},
		{"Recessed Light 4\"", "each", 28},
		{"Ceiling Fan Standard", "each", 125},
		{"Ceiling Fan w/ Light", "each", 185},
		{"Junction Box", "each", 3.5},
		{"Outlet Box", "each", 2},
		{"Wire Nuts (bag)", "each", 8},
		{"Smoke Detector", "each", 25},
		{"CO Detector", "each", 35},
	},
	domain.TradeRoofing: {
		{"3-Tab Shingles", "square", 95},
		{"Architectural Shingles", "square", 135},
		{"Premium Architectural Shingles", "square", 185},
		{"Metal Roofing Standing Seam", "square", 450},
		{"Metal Roofing Corrugated", "square", 275},
		{"Clay Tiles", "square", 650},
		{"Concrete Tiles", "square", 425},
		{"Synthetic Underlayment", "roll", 125},
		{"Felt Underlayment 15#", "roll", 35},
		{"Felt Underlayment 30#", "roll", 45},
		{"Ice & Water Shield", "roll", 145},
		{"Drip Edge", "ft", 1.25},
		{"Flashing - Aluminum", "ft", 2.5},
		{"Flashing - Lead", "ft", 4.5},
		{"Step Flashing", "each", 1.5},
		{"Ridge Vent", "ft", 4},
		{"Ridge Cap Shingles", "bundle", 65},
		{"Roof Vent - Box", "each", 35},
		{"Roof Vent - Turbine", "each", 55},
		{"Plumbing Boot", "each", 18},
		{"Pipe Collar", "each", 12},
		{"Roofing Nails (box)", "box", 45},
		{"Roofing Cement", "gallon", 18},
		{"Roofing Tar", "bucket", 35},
		{"Skylight 22x46", "each", 425},
		{"Skylight 30x46", "each", 525},
		{"Gutter - Aluminum 5\"", "ft", 6.5},
		{"Gutter - Aluminum 6\"", "ft", 8},
		{"Downspout", "ft", 4.5},
		{"Gutter Guards", "ft", 3.5},
		{"Fascia Board", "ft", 5},
		{"Soffit Panel", "sqft", 4},
		{"OSB Sheathing 7/16\"", "sheet", 28},
		{"Plywood Sheathing 1/2\"", "sheet", 42},
	},
}
