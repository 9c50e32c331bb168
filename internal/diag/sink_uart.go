package diag

import "github.com/ryan-jacobs1/oxidizedos/hal"

// UART register offsets from the COM1 base, 16550-compatible — the x86
// port-I/O analogue of the teacher's PL011 MMIO registers (QEMU_UART_DR,
// QEMU_UART_FR) in uart_qemu.go.
const (
	com1Base        uint16 = 0x3F8
	uartData               = com1Base + 0
	uartLineStatus         = com1Base + 5
	lineStatusTxRdy uint8  = 1 << 5
)

// UARTSink is the production ByteSink: a polled 16550 serial port reached
// through hal.HAL's port I/O, playing the same role uart_qemu.go's
// asm.UartInitPl011 + direct MMIO writes play for the teacher, adapted to
// x86's port-mapped UART instead of ARM's memory-mapped one.
type UARTSink struct {
	h hal.HAL
}

// NewUARTSink returns a sink writing to COM1. Callers are expected to
// have already programmed the line/baud-rate registers during early
// boot; this type only ever touches the data and line-status registers.
func NewUARTSink(h hal.HAL) *UARTSink {
	return &UARTSink{h: h}
}

func (u *UARTSink) WriteByte(b byte) {
	for u.h.InB(uartLineStatus)&lineStatusTxRdy == 0 {
	}
	u.h.OutB(uartData, b)
}
