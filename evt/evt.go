package evt

func (e Connected) ConnHandle() uint16 {
	v, _ := e.ConnHandleWErr()
	return v
}

func (e Connected) PeerAddrType() uint8 {
	v, _ := e.PeerAddrTypeWErr()
	return v
}

func (e Connected) PeerAddr() [6]byte {
	v, _ := e.PeerAddrWErr()
	return v
}

func (e Connected) Role() uint8 {
	v, _ := e.RoleWErr()
	return v
}

func (e Disconnected) ConnHandle() uint16 {
	v, _ := e.ConnHandleWErr()
	return v
}

func (e Disconnected) Reason() uint8 {
	v, _ := e.ReasonWErr()
	return v
}

func (e Write) ConnHandle() uint16 {
	v, _ := e.ConnHandleWErr()
	return v
}

func (e Write) Handle() uint16 {
	v, _ := e.HandleWErr()
	return v
}

func (e Write) Op() uint8 {
	v, _ := e.OpWErr()
	return v
}

func (e Write) Data() []byte {
	v, _ := e.DataWErr()
	return v
}

func (e ExchangeMTURequest) ConnHandle() uint16 {
	v, _ := e.ConnHandleWErr()
	return v
}

func (e ExchangeMTURequest) ClientRxMTU() uint16 {
	v, _ := e.ClientRxMTUWErr()
	return v
}

func (e TxComplete) ConnHandle() uint16 {
	v, _ := e.ConnHandleWErr()
	return v
}

func (e TxComplete) Count() uint8 {
	v, _ := e.CountWErr()
	return v
}
