package insts

// Walk decodes consecutive instructions starting at addr and calls fn for
// each one. It stops without error when the stream ends on an instruction
// boundary, and returns the first fault or the first error from fn.
func (d *Decoder) Walk(src ByteSource, addr uint64, fn func(*Instruction) error) error {
	for {
		inst, err := d.Decode(src, addr)
		if err != nil {
			if IsEndOfStream(err) {
				return nil
			}
			return err
		}

		if err := fn(inst); err != nil {
			return err
		}

		addr += uint64(inst.Length)
	}
}
