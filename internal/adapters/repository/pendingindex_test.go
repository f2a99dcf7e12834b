package repository

import (
	"fmt"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/widjis/attend-now-report-view-sub001/internal/domain/model"
)

func all(model.GroupKey) bool { return true }

func TestPendingIndex(t *testing.T) {
	Convey("Given an index with keys added out of order", t, func() {
		var idx pendingIndex
		idx.add(model.GroupKey{StaffNo: "B", Date: "2024-03-02"})
		idx.add(model.GroupKey{StaffNo: "A", Date: "2024-03-02"})
		idx.add(model.GroupKey{StaffNo: "C", Date: "2024-03-01"})
		idx.add(model.GroupKey{StaffNo: "A", Date: "2024-03-02"})

		Convey("Then duplicates are ignored", func() {
			So(idx.len(), ShouldEqual, 3)
		})

		Convey("Then traversal is ordered by date then staff", func() {
			keys := idx.after(model.GroupKey{}, 10, all)
			So(keys, ShouldResemble, []model.GroupKey{
				{StaffNo: "C", Date: "2024-03-01"},
				{StaffNo: "A", Date: "2024-03-02"},
				{StaffNo: "B", Date: "2024-03-02"},
			})
		})

		Convey("Then the cursor is exclusive and the limit applies", func() {
			keys := idx.after(model.GroupKey{StaffNo: "C", Date: "2024-03-01"}, 1, all)
			So(keys, ShouldResemble, []model.GroupKey{{StaffNo: "A", Date: "2024-03-02"}})
		})

		Convey("Then the filter skips keys without counting them", func() {
			keys := idx.after(model.GroupKey{}, 1, func(k model.GroupKey) bool { return k.StaffNo != "C" })
			So(keys, ShouldResemble, []model.GroupKey{{StaffNo: "A", Date: "2024-03-02"}})
		})

		Convey("When a key is removed", func() {
			idx.remove(model.GroupKey{StaffNo: "A", Date: "2024-03-02"})
			idx.remove(model.GroupKey{StaffNo: "Z", Date: "2024-03-09"})

			So(idx.len(), ShouldEqual, 2)
			So(idx.after(model.GroupKey{}, 10, all), ShouldHaveLength, 2)
		})
	})

	Convey("Given many keys", t, func() {
		var idx pendingIndex
		for i := 999; i >= 0; i-- {
			idx.add(model.GroupKey{StaffNo: fmt.Sprintf("S%04d", i), Date: "2024-03-01"})
		}

		Convey("Then paging with the cursor visits each once in order", func() {
			var seen []model.GroupKey
			var cursor model.GroupKey
			for {
				page := idx.after(cursor, 128, all)
				if len(page) == 0 {
					break
				}
				seen = append(seen, page...)
				cursor = page[len(page)-1]
			}
			So(seen, ShouldHaveLength, 1000)
			for i := 1; i < len(seen); i++ {
				So(seen[i-1].Less(seen[i]), ShouldBeTrue)
			}
		})
	})
}
