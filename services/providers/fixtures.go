package providers

import (
	"hash/fnv"
)

// Requisite is a payment destination handed to the payer
type Requisite struct {
	Card   string `json:"card" xml:"card"`
	Phone  string `json:"phone" xml:"phone"`
	Bank   string `json:"bank" xml:"bank"`
	Holder string `json:"holder" xml:"holder"`
}

// Fixtures are the requisites simulators hand out. They are fixed so that assertions
// can compare them literally.
var Fixtures = []Requisite{
	{Card: "220070******1234", Phone: "+79001112233", Bank: "Sberbank", Holder: "IVAN PETROV"},
	{Card: "220024******5678", Phone: "+79004445566", Bank: "Tinkoff", Holder: "ANNA SMIRNOVA"},
	{Card: "220015******9012", Phone: "+79007778899", Bank: "Alfa-Bank", Holder: "OLEG IVANOV"},
	{Card: "220220******3456", Phone: "+79001234567", Bank: "VTB", Holder: "MARIA KUZNETSOVA"},
}

// RequisiteFor picks a fixture by a stable hash of key, so one order always gets the same one
func RequisiteFor(key string) Requisite {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return Fixtures[h.Sum32()%uint32(len(Fixtures))]
}
