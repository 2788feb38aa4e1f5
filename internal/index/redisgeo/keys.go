package redisgeo

import "fmt"

// Key layout under one namespace:
//
//	<ns>:points            geo sorted set, member = entity id
//	<ns>:membercell:<id>   string, current cell token for the id;
//	                       doubles as the WATCH target that serializes
//	                       concurrent writers for the same id
//	<ns>:cell:<res>:<c>    set of ids whose point falls in cell c
func geoKey(ns string) string { return ns + ":points" }

func memberCellKey(ns, id string) string { return ns + ":membercell:" + id }

func cellKey(ns string, res int, cell string) string {
	return fmt.Sprintf("%s:cell:%d:%s", ns, res, cell)
}
