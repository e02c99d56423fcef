package kvmap

// Single-key convenience forms. Each is a thin wrapper over the bulk
// pipeline; there is no cheaper single-entry path on the device.

// Put inserts or updates one entry.
func (m *Map) Put(key, value uint32) error {
	return m.BulkPut([]KvEntry{{Key: key, Value: value}})
}

// Get returns the live value stored for key, if any.
func (m *Map) Get(key uint32) (uint32, bool, error) {
	res, err := m.BulkGet([]uint32{key})
	if err != nil {
		return 0, false, err
	}
	return res[0].Value, res[0].Found, nil
}

// Delete removes key if present; absent keys are no-ops.
func (m *Map) Delete(key uint32) error {
	return m.BulkDelete([]uint32{key})
}
