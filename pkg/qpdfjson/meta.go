package qpdfjson

import (
	"sort"
	"strconv"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// encrypt writes the encryption summary of the source document.
func (e *encoder) encrypt() {
	if e.ctx.Encrypt == nil {
		e.raw(`{"encrypted":false}`)
		return
	}

	e.raw(`{"encrypted":true,"passwordsupplied":`)
	e.raw(strconv.FormatBool(e.ctx.Configuration.UserPW != "" || e.ctx.Configuration.OwnerPW != ""))

	d, err := e.ctx.DereferenceDict(*e.ctx.Encrypt)
	if err != nil || d == nil {
		e.raw("}")
		return
	}

	v := intEntry(d, "V", 0)
	r := intEntry(d, "R", 0)
	bits := intEntry(d, "Length", 40)
	method := "RC4"
	switch {
	case v >= 5:
		method, bits = "AESv3", 256
	case v == 4:
		method = cryptMethod(d)
		if method == "AESv2" {
			bits = 128
		}
	}

	e.raw(`,"parameters":{"R":`)
	e.raw(strconv.Itoa(r))
	e.raw(`,"V":`)
	e.raw(strconv.Itoa(v))
	e.raw(`,"P":`)
	e.raw(strconv.Itoa(intEntry(d, "P", 0)))
	e.raw(`,"bits":`)
	e.raw(strconv.Itoa(bits))
	e.raw(`,"filter":`)
	filter := "Standard"
	if n := d.NameEntry("Filter"); n != nil {
		filter = *n
	}
	e.str("/" + filter)
	e.raw(`,"method":`)
	e.str(method)
	e.raw("}}")
}

func intEntry(d types.Dict, key string, def int) int {
	if i := d.IntEntry(key); i != nil {
		return *i
	}
	return def
}

// cryptMethod maps the standard crypt filter's CFM to a method name.
func cryptMethod(d types.Dict) string {
	stmf := "StdCF"
	if n := d.NameEntry("StmF"); n != nil {
		stmf = *n
	}
	cf := d.DictEntry("CF")
	if cf == nil {
		return "RC4"
	}
	filter := cf.DictEntry(stmf)
	if filter == nil {
		return "RC4"
	}
	if cfm := filter.NameEntry("CFM"); cfm != nil {
		switch *cfm {
		case "AESV2":
			return "AESv2"
		case "AESV3":
			return "AESv3"
		case "None":
			return "none"
		}
	}
	return "RC4"
}

// objectStreams writes the membership of every object stream, keyed by the
// stream's reference. The reader clears Compressed once an object has been
// loaded, so membership is taken from ObjectStream alone.
func (e *encoder) objectStreams() {
	members := map[int][]int{}
	for nr, entry := range e.ctx.Table {
		if nr == 0 || entry == nil || entry.Free || entry.Object == nil || entry.ObjectStream == nil {
			continue
		}
		members[*entry.ObjectStream] = append(members[*entry.ObjectStream], nr)
	}

	streams := make([]int, 0, len(members))
	for nr := range members {
		streams = append(streams, nr)
	}
	sort.Ints(streams)

	e.raw("{")
	for i, s := range streams {
		if i > 0 {
			e.raw(",")
		}
		objs := members[s]
		sort.Ints(objs)

		e.key(ref(s, 0))
		e.raw(`{"objects":[`)
		for j, nr := range objs {
			if j > 0 {
				e.raw(",")
			}
			e.str(ref(nr, 0))
		}
		e.raw("]}")
	}
	e.raw("}")
}
