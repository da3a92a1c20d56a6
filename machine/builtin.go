package machine

const (
	spmCupcakeExt  = 50.235478806907409
	spmPololuExt   = 100.470957613814818
	spmMightyExt   = 96.275201870333662468889989185642
	spmReplicator2 = 88.888889
)

func cupcake(typ, desc string, id ID, xy, z, ext float64) *Profile {
	return &Profile{
		Type: typ, Desc: desc,
		X:                       Axis{9600, 500, 30, 500, 100, xy, EndstopMin},
		Y:                       Axis{9600, 500, 30, 500, 100, xy, EndstopMin},
		Z:                       Axis{450, 100, 25, 450, 100, z, EndstopMin},
		A:                       Extruder{7200, 1000, 30, ext, 400, true},
		B:                       Extruder{7200, 1000, 30, ext, 400, true},
		NominalFilamentDiameter: 1.75,
		NominalPackingDensity:   0.85,
		NozzleDiameter:          0.4,
		JKN:                     [2]float64{0.0085, 0.0090},
		ExtruderCount:           1,
		Timeout:                 20,
		ID:                      id,
	}
}

func thingOMatic(typ, desc string, id ID, offsetX float64, extruders int) *Profile {
	return &Profile{
		Type: typ, Desc: desc,
		X:                       Axis{9600, 500, 30, 500, 106, 47.058824, EndstopMin},
		Y:                       Axis{9600, 500, 30, 500, 120, 47.058824, EndstopMin},
		Z:                       Axis{1000, 150, 10, 500, 106, 200, EndstopMax},
		A:                       Extruder{1600, 1000, 30, spmCupcakeExt, 1600, true},
		B:                       Extruder{1600, 1000, 30, spmCupcakeExt, 1600, true},
		NominalFilamentDiameter: 1.75,
		NominalPackingDensity:   0.85,
		NozzleDiameter:          0.4,
		ToolheadOffsets:         [3]float64{offsetX, 0, 0},
		JKN:                     [2]float64{0.0070, 0.0040},
		ExtruderCount:           extruders,
		Timeout:                 20,
		ID:                      id,
	}
}

// mighty describes the Replicator style machines; callers adjust the
// fields that differ.
func mighty(typ, desc string, id ID, x, y, z, density float64, hbp bool) *Profile {
	return &Profile{
		Type: typ, Desc: desc,
		X:                       Axis{18000, 1000, 15, 2500, x, spmReplicator2, EndstopMax},
		Y:                       Axis{18000, 1000, 15, 2500, y, spmReplicator2, EndstopMax},
		Z:                       Axis{1170, 150, 10, 1100, z, 400, EndstopMin},
		A:                       Extruder{1600, 2000, 20, spmMightyExt, 3200, hbp},
		B:                       Extruder{1600, 2000, 20, spmMightyExt, 3200, hbp},
		NominalFilamentDiameter: 1.75,
		NominalPackingDensity:   density,
		NozzleDiameter:          0.4,
		JKN:                     [2]float64{0.0050, 0.0550},
		ExtruderCount:           1,
		Timeout:                 20,
		ID:                      id,
	}
}

func withOffset(p *Profile, offsetX float64) *Profile {
	p.ToolheadOffsets = [3]float64{offsetX, 0, 0}
	p.ExtruderCount = 2
	return p
}

func replicator1(typ, desc string, id ID) *Profile {
	p := mighty(typ, desc, id, 227, 148, 150, 0.85, true)
	p.X.StepsPerMM = 94.117647
	p.Y.StepsPerMM = 94.117647
	return p
}

func zyyx(typ, desc string, id ID, hbp bool) *Profile {
	p := mighty(typ, desc, id, 270, 230, 195, 0.97, hbp)
	p.X.MaxAccel, p.X.MaxSpeedChange = 850, 12
	p.Y.MaxAccel, p.Y.MaxSpeedChange = 850, 12
	p.Z.MaxAccel, p.Z.MaxSpeedChange = 50, 12
	p.A = Extruder{5000, 5000, 100, spmMightyExt, 3200, hbp}
	p.B = p.A
	return p
}

func slowZ(p *Profile) *Profile {
	p.Z.MaxFeedrate = 600
	p.Z.HomeFeedrate = 600
	return p
}

var builtin = []*Profile{
	cupcake("c3", "Cupcake Gen3 XYZ, Mk5/6 + Gen4 Extruder", CupcakeG3, 11.767463, 320, spmCupcakeExt),
	cupcake("c4", "Cupcake Gen4 XYZ, Mk5/6 + Gen4 Extruder", CupcakeG4, 47.069852, 1280, spmCupcakeExt),
	cupcake("cp4", "Cupcake Pololu XYZ, Mk5/6 + Gen4 Extruder", CupcakeP4, 94.13970462, 2560, spmCupcakeExt),
	cupcake("cpp", "Cupcake Pololu XYZ, Mk5/6 + Pololu Extruder", CupcakePP, 47.069852, 1280, spmPololuExt),
	mighty("cxy", "Core-XY with HBP - single extruder", CoreXY, 200, 200, 200, 0.85, true),
	slowZ(mighty("cxysz", "Core-XY with HBP - single extruder, slow Z", CoreXYSZ, 200, 200, 200, 0.85, true)),
	mighty("cr1", "Clone R1 Single with HBP", CloneR1, 300, 195, 210, 0.97, true),
	withOffset(mighty("cr1d", "Clone R1 Dual with HBP", CloneR1D, 280, 195, 210, 0.97, true), 33),
	replicator1("r1", "Replicator 1 - single extruder", Replicator1),
	withOffset(replicator1("r1d", "Replicator 1 - dual extruder", Replicator1D), 33),
	mighty("r2", "Replicator 2 (default)", Replicator2, 285, 152, 155, 0.97, false),
	mighty("r2h", "Replicator 2 with HBP", Replicator2H, 285, 152, 155, 0.97, true),
	withOffset(mighty("r2x", "Replicator 2X", Replicator2X, 246, 152, 155, 0.85, true), 35),
	thingOMatic("t6", "TOM Mk6 - single extruder", ThingOMatic6, 0, 1),
	thingOMatic("t7", "TOM Mk7 - single extruder", ThingOMatic7, 0, 1),
	thingOMatic("t7d", "TOM Mk7 - dual extruder", ThingOMatic7D, 33, 2),
	zyyx("z", "ZYYX - single extruder", ZYYX, false),
	withOffset(zyyx("zd", "ZYYX - dual extruder", ZYYXD, false), 33),
	zyyx("zp", "ZYYX pro", ZYYXPro, true),
}
