package core

import (
	"github.com/sarchlab/psxrec/asm"
	"github.com/sarchlab/psxrec/emu"
	"github.com/sarchlab/psxrec/insts"
)

func (m *Machine) registerNatives() {
	e := m.emu

	e.RegisterNative(MemRead8Addr, func(e *emu.Emulator, args [4]uint32) {
		m.stats.MemReads++
		e.RegFile().WriteReg(asm.V0, uint32(m.ReadGuest8(args[0])))
	})
	e.RegisterNative(MemRead16Addr, func(e *emu.Emulator, args [4]uint32) {
		m.stats.MemReads++
		e.RegFile().WriteReg(asm.V0, uint32(m.ReadGuest16(args[0])))
	})
	e.RegisterNative(MemRead32Addr, func(e *emu.Emulator, args [4]uint32) {
		m.stats.MemReads++
		e.RegFile().WriteReg(asm.V0, m.ReadGuest32(args[0]))
	})

	e.RegisterNative(MemWrite8Addr, func(_ *emu.Emulator, args [4]uint32) {
		m.stats.MemWrites++
		m.WriteGuest8(args[0], uint8(args[1]))
	})
	e.RegisterNative(MemWrite16Addr, func(_ *emu.Emulator, args [4]uint32) {
		m.stats.MemWrites++
		m.WriteGuest16(args[0], uint16(args[1]))
	})
	e.RegisterNative(MemWrite32Addr, func(_ *emu.Emulator, args [4]uint32) {
		m.stats.MemWrites++
		m.WriteGuest32(args[0], args[1])
	})

	e.RegisterNative(InterpreterAddr, func(_ *emu.Emulator, args [4]uint32) {
		m.stats.InterpreterCalls++
		m.interpret(args[0], args[1])
	})

	for _, cmd := range insts.GTECommands() {
		m.registerGTE(cmd)
	}
}

// registerGTE installs the native for one GTE command. Commands without a
// handler are only counted.
func (m *Machine) registerGTE(cmd insts.GTECommand) {
	op := cmd.Op
	oneArg := cmd.Args == insts.GTEOneArg

	m.emu.RegisterNative(GTEAddr(op), func(_ *emu.Emulator, args [4]uint32) {
		m.stats.GTECalls[op]++

		fn, ok := m.gte[op]
		if !ok {
			return
		}
		arg := uint32(0)
		if oneArg {
			arg = args[0]
		}

		s := m.State()
		fn(s, arg)
		m.SetState(s)
	})
}
