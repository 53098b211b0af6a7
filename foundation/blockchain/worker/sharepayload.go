package worker

// sharePayloadOperations handles sharing new payloads with the peers.
func (w *Worker) sharePayloadOperations() {
	w.evHandler("worker: sharePayloadOperations: G started")
	defer w.evHandler("worker: sharePayloadOperations: G completed")

	for {
		select {
		case entry := <-w.payloadSharing:
			if !w.isShutdown() {
				w.state.NetSendPayloadToPeers(entry)
			}
		case <-w.shut:
			w.evHandler("worker: sharePayloadOperations: received shut signal")
			return
		}
	}
}
